// Package regions finds connected foreground components in a binary mask
// and derives a bounding box and confidence for each.
package regions

import (
	"github.com/example/forgery-detect/internal/mask"
)

// Region is one connected foreground component. X2 and Y2 are exclusive,
// like image.Rectangle. Area counts the pixels enclosed by the component's
// outer contour, which includes fully-enclosed holes but never exceeds the
// bounding-box area.
type Region struct {
	X1, Y1, X2, Y2 int
	Confidence     float64
	Area           int
}

// Extract returns the foreground components of bm in row-major discovery
// order. Components are connected under 8-connectivity. Confidence is the
// component's enclosed area relative to the total foreground pixel count,
// clamped to 1.0, or 0.0 when the mask has no foreground at all.
//
// Extraction is best-effort: any internal failure degrades to an empty
// region list rather than aborting the surrounding analysis.
func Extract(bm mask.BinaryMask) (out []Region) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()

	if bm.H <= 0 || bm.W <= 0 || len(bm.Data) != bm.H*bm.W {
		return nil
	}

	total := bm.ForegroundCount()
	if total == 0 {
		return nil
	}

	labels := make([]int32, len(bm.Data))
	next := int32(1)
	for y := 0; y < bm.H; y++ {
		for x := 0; x < bm.W; x++ {
			idx := y*bm.W + x
			if bm.Data[idx] != 1 || labels[idx] != 0 {
				continue
			}
			r := traceComponent(bm, labels, next, x, y)
			r.Area = enclosedArea(bm, labels, next, r)
			r.Confidence = float64(r.Area) / float64(total)
			if r.Confidence > 1.0 {
				r.Confidence = 1.0
			}
			out = append(out, r)
			next++
		}
	}
	return out
}

// traceComponent flood-fills the 8-connected component containing (x, y),
// assigning it the given label and accumulating its bounding box.
func traceComponent(bm mask.BinaryMask, labels []int32, label int32, x, y int) Region {
	r := Region{X1: x, Y1: y, X2: x + 1, Y2: y + 1}
	stack := []int{y*bm.W + x}
	labels[stack[0]] = label

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cy, cx := idx/bm.W, idx%bm.W

		if cx < r.X1 {
			r.X1 = cx
		}
		if cy < r.Y1 {
			r.Y1 = cy
		}
		if cx+1 > r.X2 {
			r.X2 = cx + 1
		}
		if cy+1 > r.Y2 {
			r.Y2 = cy + 1
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dy == 0 && dx == 0 {
					continue
				}
				ny, nx := cy+dy, cx+dx
				if ny < 0 || ny >= bm.H || nx < 0 || nx >= bm.W {
					continue
				}
				nidx := ny*bm.W + nx
				if bm.Data[nidx] == 1 && labels[nidx] == 0 {
					labels[nidx] = label
					stack = append(stack, nidx)
				}
			}
		}
	}
	return r
}

// enclosedArea counts the pixels inside the component's outer contour:
// the component itself plus any holes it fully surrounds. Holes are found
// by flood-filling non-component pixels inward from the bounding-box border
// with 4-connectivity; whatever the fill cannot reach is enclosed.
func enclosedArea(bm mask.BinaryMask, labels []int32, label int32, r Region) int {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	outside := make([]bool, w*h)
	var stack []int

	seed := func(lx, ly int) {
		idx := ly*w + lx
		if outside[idx] || labels[(r.Y1+ly)*bm.W+(r.X1+lx)] == label {
			return
		}
		outside[idx] = true
		stack = append(stack, idx)
	}
	for lx := 0; lx < w; lx++ {
		seed(lx, 0)
		seed(lx, h-1)
	}
	for ly := 0; ly < h; ly++ {
		seed(0, ly)
		seed(w-1, ly)
	}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ly, lx := idx/w, idx%w
		if lx > 0 {
			seed(lx-1, ly)
		}
		if lx < w-1 {
			seed(lx+1, ly)
		}
		if ly > 0 {
			seed(lx, ly-1)
		}
		if ly < h-1 {
			seed(lx, ly+1)
		}
	}

	area := 0
	for _, reached := range outside {
		if !reached {
			area++
		}
	}
	return area
}
