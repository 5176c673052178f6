// Package colour implements the RGB/HSV arithmetic behind garment colour
// matching: conversion, palettes, harmony scoring and the "r,g,b" wire form.
package colour

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is an 8-bit per channel colour.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSV holds hue, saturation and value, each in [0,1].
type HSV struct {
	H float64
	S float64
	V float64
}

// Scheme selects a palette derivation.
type Scheme string

const (
	Monochromatic Scheme = "monochromatic"
	Analogous     Scheme = "analogous"
	Complementary Scheme = "complementary"
	Triadic       Scheme = "triadic"
)

// Schemes lists every supported palette kind.
var Schemes = []Scheme{Monochromatic, Analogous, Complementary, Triadic}

// String renders the colour as "r,g,b".
func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// Hex renders the colour as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Parse reads "r,g,b". Malformed input yields black.
func Parse(raw string) RGB {
	c, err := ParseStrict(raw)
	if err != nil {
		return RGB{}
	}
	return c
}

// ParseStrict reads "r,g,b" and reports malformed input.
func ParseStrict(raw string) (RGB, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("colour %q: want three components", raw)
	}
	var out [3]uint8
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return RGB{}, fmt.Errorf("colour %q: component %d out of range", raw, i)
		}
		out[i] = uint8(n)
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

// MarshalJSON encodes the colour in its "r,g,b" form.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "r,g,b" strings and {"r":..,"g":..,"b":..} objects.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		parsed, err := ParseStrict(raw)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var obj struct{ R, G, B uint8 }
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("colour: %w", err)
	}
	*c = RGB{R: obj.R, G: obj.G, B: obj.B}
	return nil
}

// Value stores the colour as "r,g,b".
func (c RGB) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan reads the "r,g,b" column form. Malformed values scan as black.
func (c *RGB) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = RGB{}
	case string:
		*c = Parse(v)
	case []byte:
		*c = Parse(string(v))
	default:
		return fmt.Errorf("colour: cannot scan %T", src)
	}
	return nil
}

// ToHSV converts to hue, saturation and value in [0,1]. Hue is 0 for greys.
func ToHSV(c RGB) HSV {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC

	hsv := HSV{V: maxC}
	if maxC == 0 {
		return hsv
	}
	hsv.S = delta / maxC
	if delta == 0 {
		return hsv
	}

	var h float64
	switch maxC {
	case r:
		h = (g - b) / delta
	case g:
		h = 2 + (b-r)/delta
	default:
		h = 4 + (r-g)/delta
	}
	h /= 6
	if h < 0 {
		h++
	}
	hsv.H = h
	return hsv
}

// FromHSV converts back to 8-bit RGB, rounding each channel.
func FromHSV(h HSV) RGB {
	hue := wrap(h.H)
	s := clamp01(h.S)
	v := clamp01(h.V)
	if s == 0 {
		return RGB{R: to8(v), G: to8(v), B: to8(v)}
	}

	sector := math.Floor(hue * 6)
	f := hue*6 - sector
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(sector) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return RGB{R: to8(r), G: to8(g), B: to8(b)}
}

// Palette derives three colours from base. The first is always base.
func Palette(base RGB, kind Scheme) [3]RGB {
	hsv := ToHSV(base)
	switch kind {
	case Monochromatic:
		return [3]RGB{
			base,
			FromHSV(HSV{H: hsv.H, S: hsv.S * 0.7, V: hsv.V}),
			FromHSV(HSV{H: hsv.H, S: hsv.S, V: hsv.V * 0.7}),
		}
	case Analogous:
		return [3]RGB{base, rotate(hsv, 1.0/12), rotate(hsv, -1.0/12)}
	case Complementary:
		return [3]RGB{
			base,
			rotate(hsv, 0.5),
			FromHSV(HSV{H: hsv.H, S: hsv.S * 0.8, V: hsv.V * 0.8}),
		}
	case Triadic:
		return [3]RGB{base, rotate(hsv, 1.0/3), rotate(hsv, 2.0/3)}
	default:
		return [3]RGB{base, base, base}
	}
}

// ParseScheme resolves a scheme name case-insensitively.
func ParseScheme(raw string) (Scheme, bool) {
	for _, s := range Schemes {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, true
		}
	}
	return "", false
}

// Harmony scores how well two colours sit together, in [0,1]. It rewards
// both complementary and analogous hue relations and close saturation and
// value. Harmony(c, c) is 0.85.
func Harmony(a, b RGB) float64 {
	h1, h2 := ToHSV(a), ToHSV(b)
	dh := HueDistance(h1.H, h2.H)

	complementaryTerm := 1 - math.Abs(dh-0.5)
	analogousTerm := 1 - 4*math.Min(dh, 0.25)
	saturationTerm := 1 - math.Abs(h1.S-h2.S)
	valueTerm := 1 - math.Abs(h1.V-h2.V)

	score := 0.30*complementaryTerm + 0.30*analogousTerm + 0.20*saturationTerm + 0.20*valueTerm
	return clamp01(score)
}

// HueDistance is the distance between two hues on the unit circle, in [0, 0.5].
func HueDistance(h1, h2 float64) float64 {
	d := math.Abs(h1 - h2)
	return math.Min(d, 1-d)
}

// ComplementOf rotates the hue by half a turn.
func ComplementOf(c RGB) RGB {
	return rotate(ToHSV(c), 0.5)
}

// AnalogousOf returns the two rotations by -angle and +angle degrees.
func AnalogousOf(c RGB, angleDeg float64) [2]RGB {
	if angleDeg == 0 {
		angleDeg = 30
	}
	hsv := ToHSV(c)
	shift := angleDeg / 360
	return [2]RGB{rotate(hsv, -shift), rotate(hsv, shift)}
}

func rotate(h HSV, by float64) RGB {
	return FromHSV(HSV{H: wrap(h.H + by), S: h.S, V: h.V})
}

func wrap(h float64) float64 {
	h = math.Mod(h, 1)
	if h < 0 {
		h++
	}
	return h
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
