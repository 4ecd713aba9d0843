// Package parallel provides the tile-based parallel execution engine behind
// livecode shaders.
//
// A surface is divided into rectangular tiles (64x64 by default) that never
// overlap and together cover every pixel exactly once. Each tile becomes one
// job on a WorkerPool, so per-pixel work needs no locking: two jobs never
// touch the same pixel.
//
//   - 64x64 tiles keep one tile's RGBA data (16KB) inside L1 cache
//   - edge tiles are clipped to the surface bounds
//   - panics inside jobs are collected and reported by Wait
package parallel

import "image"

// DefaultTileSize is the tile edge length used when a caller passes a
// non-positive tile size. 64 pixels balances submission overhead against
// load-balance granularity.
const DefaultTileSize = 64

// Tile is a rectangular region of a surface processed by one job.
//
// X and Y are pixel offsets of the top-left corner. Width and Height are the
// clipped size, so edge tiles may be smaller than the requested tile size.
type Tile struct {
	X, Y          int
	Width, Height int
}

// Bounds returns the pixel bounds of this tile as (x, y, width, height).
func (t Tile) Bounds() (x, y, w, h int) {
	return t.X, t.Y, t.Width, t.Height
}

// Rect returns the tile as an image.Rectangle in surface space.
func (t Tile) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Contains returns true if the surface pixel (px, py) is within this tile.
func (t Tile) Contains(px, py int) bool {
	return px >= t.X && px < t.X+t.Width &&
		py >= t.Y && py < t.Y+t.Height
}

// Pixels returns the number of pixels covered by the tile.
func (t Tile) Pixels() int {
	return t.Width * t.Height
}

// GridSize returns how many tiles Partition produces horizontally and
// vertically for the given surface and tile sizes.
func GridSize(width, height, tileW, tileH int) (nx, ny int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	tileW, tileH = normalizeTileSize(tileW, tileH)
	return (width + tileW - 1) / tileW, (height + tileH - 1) / tileH
}

// Partition splits a width x height surface into tiles in row-major order.
// The last column and row are clipped to the surface bounds. An empty
// surface yields no tiles.
func Partition(width, height, tileW, tileH int) []Tile {
	nx, ny := GridSize(width, height, tileW, tileH)
	if nx == 0 || ny == 0 {
		return nil
	}
	tileW, tileH = normalizeTileSize(tileW, tileH)

	tiles := make([]Tile, 0, nx*ny)
	for ty := range ny {
		for tx := range nx {
			x := tx * tileW
			y := ty * tileH
			tiles = append(tiles, Tile{
				X:      x,
				Y:      y,
				Width:  min(tileW, width-x),
				Height: min(tileH, height-y),
			})
		}
	}
	return tiles
}

func normalizeTileSize(tileW, tileH int) (int, int) {
	if tileW <= 0 {
		tileW = DefaultTileSize
	}
	if tileH <= 0 {
		tileH = DefaultTileSize
	}
	return tileW, tileH
}
