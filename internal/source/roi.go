// internal/source/roi.go
package source

import "image"

// ROIMean derives a per-frame intensity sample from a decoded image: the
// mean red-channel level, scaled to 0-255, over the region of interest.
// The red channel carries the strongest pulsatile component when a finger
// covers the lens with the flash on.
//
// The region is clipped to the image bounds. An empty intersection yields 0.
func ROIMean(img image.Image, roi image.Rectangle) float64 {
	r := roi.Intersect(img.Bounds())
	if r.Empty() {
		return 0
	}

	var sum uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			red, _, _, _ := img.At(x, y).RGBA()
			sum += uint64(red >> 8)
		}
	}
	return float64(sum) / float64(r.Dx()*r.Dy())
}

// CenterROI returns a square region of interest covering the middle of the
// frame, sized to the given fraction of the shorter image dimension. Useful
// as a default when the caller has no skin-contact localization.
func CenterROI(bounds image.Rectangle, fraction float64) image.Rectangle {
	if fraction <= 0 || fraction > 1 {
		fraction = 0.5
	}

	short := bounds.Dx()
	if bounds.Dy() < short {
		short = bounds.Dy()
	}
	half := int(float64(short) * fraction / 2)

	cx := (bounds.Min.X + bounds.Max.X) / 2
	cy := (bounds.Min.Y + bounds.Max.Y) / 2
	return image.Rect(cx-half, cy-half, cx+half, cy+half)
}
