// Package quality maps original image size and a 1-9 quality scale to a
// JPEG quality percentage.
package quality

// Size band upper bounds in bytes, inclusive. Anything above the last
// bound falls into the final row of the table.
var bands = [...]int{
	1 * 1024,
	5 * 1024,
	20 * 1024,
	50 * 1024,
	100 * 1024,
	200 * 1024,
}

// table[band][scale-1]. Hand-tuned: quality falls as size grows and
// rises with the scale (scale 1 aggressive, scale 9 near-lossless).
// The exact values are a compatibility contract; do not retune them.
var table = [7][9]int{
	{100, 100, 100, 100, 100, 100, 100, 100, 100}, // <=1KB
	{30, 45, 60, 75, 90, 92, 94, 96, 98},          // <=5KB
	{25, 37, 49, 60, 70, 77, 83, 89, 95},          // <=20KB
	{20, 28, 36, 43, 50, 60, 70, 80, 90},          // <=50KB
	{15, 22, 28, 34, 40, 52, 63, 74, 85},          // <=100KB
	{12, 16, 19, 22, 25, 40, 53, 67, 80},          // <=200KB
	{10, 12, 14, 16, 18, 33, 47, 61, 75},          // >200KB
}

// MinScale and MaxScale bound the accepted quality scale. Callers are
// responsible for correcting out-of-range values before calling Level.
const (
	MinScale     = 1
	MaxScale     = 9
	DefaultScale = 5
)

// Level returns the JPEG quality percentage for an image of sizeBytes
// at the given scale. scale must be within [MinScale, MaxScale].
func Level(sizeBytes int, scale int) int {
	row := len(bands)
	for i, bound := range bands {
		if sizeBytes <= bound {
			row = i
			break
		}
	}
	return table[row][scale-1]
}

// ValidScale reports whether scale is within the accepted range.
func ValidScale(scale int) bool {
	return scale >= MinScale && scale <= MaxScale
}
