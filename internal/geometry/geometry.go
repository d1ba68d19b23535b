// Package geometry computes target dimensions and crop rectangles for the
// submission variant chain. Pure functions, no I/O: the transcoder feeds
// every plan the output size of the previous variant, so rounding chains
// from one rendition to the next instead of recomputing from the source.
package geometry

import "math"

// Size is a pixel width/height pair
type Size struct {
	Width  int
	Height int
}

// CropPlan is a square crop window in the coordinate space of the image it
// applies to
type CropPlan struct {
	X    int
	Y    int
	Size int
}

// LargeLandscapeWidth is the width pin of the large variant for landscape
// sources. Deliberately a fixed value rather than the configured large edge;
// the portrait branch pins height to the configured edge.
const LargeLandscapeWidth = 1600

// IsPortrait reports the orientation rule used for the whole chain: strictly
// taller than wide. Squares count as landscape and get width-pinned.
func IsPortrait(s Size) bool {
	return s.Height > s.Width
}

// PlanResize pins one axis of src to edge and scales the other
// proportionally, rounding half up. Portrait sources pin height, landscape
// (and square) sources pin width.
func PlanResize(src Size, edge int, portrait bool) Size {
	if portrait {
		return Size{
			Width:  scale(src.Width, edge, src.Height),
			Height: edge,
		}
	}
	return Size{
		Width:  edge,
		Height: scale(src.Height, edge, src.Width),
	}
}

// PlanLarge computes the large variant size from the post-orientation source
// size. Portrait pins height to largeEdge; landscape pins width to the fixed
// LargeLandscapeWidth.
func PlanLarge(src Size, largeEdge int) Size {
	if IsPortrait(src) {
		return PlanResize(src, largeEdge, true)
	}
	return PlanResize(src, LargeLandscapeWidth, false)
}

// PlanThumbnailCrop computes the square crop window applied to the medium
// variant. The ratio is taken against the post-orientation source size, not
// the medium variant's actual chained dimensions: cropSize covers the short
// axis at medium scale, and the window is centered along the pinned axis.
func PlanThumbnailCrop(orig Size, mediumEdge int) CropPlan {
	var ratio, cropSize, offset float64

	if IsPortrait(orig) {
		ratio = float64(mediumEdge) / float64(orig.Height)
		cropSize = float64(orig.Width) * ratio
		offset = float64(orig.Height)*ratio/2 - cropSize/2
		return CropPlan{
			X:    0,
			Y:    roundHalfUp(offset),
			Size: roundHalfUp(cropSize),
		}
	}

	ratio = float64(mediumEdge) / float64(orig.Width)
	cropSize = float64(orig.Height) * ratio
	offset = float64(orig.Width)*ratio/2 - cropSize/2
	return CropPlan{
		X:    roundHalfUp(offset),
		Y:    0,
		Size: roundHalfUp(cropSize),
	}
}

// Clamp confines a crop plan to the bounds of the image it is applied to.
// The plan is computed from the source dimensions while the medium variant's
// dimensions come from chained rounding, so the window can overshoot by a
// pixel.
func (p CropPlan) Clamp(bounds Size) CropPlan {
	if p.Size > bounds.Width {
		p.Size = bounds.Width
	}
	if p.Size > bounds.Height {
		p.Size = bounds.Height
	}
	if p.X+p.Size > bounds.Width {
		p.X = bounds.Width - p.Size
	}
	if p.Y+p.Size > bounds.Height {
		p.Y = bounds.Height - p.Size
	}
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	return p
}

// scale computes dim * edge / pinned with round-half-up, never below 1
func scale(dim, edge, pinned int) int {
	scaled := roundHalfUp(float64(dim) * float64(edge) / float64(pinned))
	if scaled < 1 {
		return 1
	}
	return scaled
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
