package selection

import "github.com/paulmach/orb"

// WorldExtent is the half width of the square world shown on the minimap
const WorldExtent = 100.0

// MinimapSize is the default minimap edge in pixels
const MinimapSize = 150.0

// WorldToMinimap maps a world X/Z point onto a minimap of the given size
func WorldToMinimap(world orb.Point, size float64) orb.Point {
	return orb.Point{
		(world[0] + WorldExtent) / (2 * WorldExtent) * size,
		(world[1] + WorldExtent) / (2 * WorldExtent) * size,
	}
}

// MinimapToWorld maps a minimap click back to world X/Z, clamped to the
// world extent
func MinimapToWorld(p orb.Point, size float64) orb.Point {
	if size <= 0 {
		return orb.Point{}
	}
	return orb.Point{
		clamp(p[0]/size*2*WorldExtent - WorldExtent),
		clamp(p[1]/size*2*WorldExtent - WorldExtent),
	}
}

func clamp(v float64) float64 {
	if v < -WorldExtent {
		return -WorldExtent
	}
	if v > WorldExtent {
		return WorldExtent
	}
	return v
}
