package models

import "github.com/noah-isme/outfit-wizard-api/pkg/colour"

// Preferences are the frequency tables mined from a user's saved outfits.
type Preferences struct {
	ColourPrefs map[string]int    `json:"colour_prefs"`
	StylePrefs  map[string]int    `json:"style_prefs"`
	Harmony     []ColourPairScore `json:"harmony"`
	Outfits     int               `json:"outfits"`
}

// ColourPairScore is the harmony of two colours seen in the same outfit.
type ColourPairScore struct {
	A     colour.RGB `json:"a"`
	B     colour.RGB `json:"b"`
	Score float64    `json:"score"`
	Count int        `json:"count"`
}

// ColourRecommendation is one suggested partner colour.
type ColourRecommendation struct {
	Colour colour.RGB `json:"colour"`
	Hex    string     `json:"hex"`
	Name   string     `json:"name"`
	Score  float64    `json:"score"`
	Source string     `json:"source"`
}
