package colour

// named is the display vocabulary used for item labels and exports.
var named = []struct {
	name string
	rgb  RGB
}{
	{"black", RGB{0, 0, 0}},
	{"white", RGB{255, 255, 255}},
	{"gray", RGB{128, 128, 128}},
	{"red", RGB{255, 0, 0}},
	{"orange", RGB{255, 165, 0}},
	{"yellow", RGB{255, 255, 0}},
	{"green", RGB{0, 128, 0}},
	{"blue", RGB{0, 0, 255}},
	{"navy", RGB{0, 0, 128}},
	{"purple", RGB{128, 0, 128}},
	{"pink", RGB{255, 192, 203}},
	{"brown", RGB{165, 42, 42}},
	{"beige", RGB{245, 245, 220}},
}

// Name returns the closest entry of a small named palette by squared
// Euclidean distance in RGB.
func (c RGB) Name() string {
	best := named[0].name
	bestDist := -1
	for _, n := range named {
		dr := int(c.R) - int(n.rgb.R)
		dg := int(c.G) - int(n.rgb.G)
		db := int(c.B) - int(n.rgb.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = n.name, d
		}
	}
	return best
}
