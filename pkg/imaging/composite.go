package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const (
	// TileSize is the edge length each garment is resized to.
	TileSize = 200
	// CompositeWidth and CompositeHeight describe the outfit canvas.
	CompositeWidth  = TileSize * 3
	CompositeHeight = TileSize
)

// Composite pastes the shirt, pants and shoes images left to right onto a
// white 600x200 canvas. Nil tiles leave their cell white.
func Composite(tiles [3]image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, CompositeWidth, CompositeHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, tile := range tiles {
		if tile == nil || tile.Bounds().Empty() {
			continue
		}
		cell := image.Rect(i*TileSize, 0, (i+1)*TileSize, TileSize)
		draw.CatmullRom.Scale(canvas, cell, tile, tile.Bounds(), draw.Over, nil)
	}
	return canvas
}
