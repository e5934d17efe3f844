// Package mask holds the dense probability mask produced by the model and
// its thresholded binary form, plus the run-length codec used to serialize
// tamper masks.
package mask

// Mask is a dense H×W map of per-pixel forgery probabilities in [0,1],
// stored row-major. It is created once per analysis and never mutated.
type Mask struct {
	H, W int
	Data []float64
}

// New allocates a zero-valued mask of the given dimensions.
func New(h, w int) Mask {
	return Mask{H: h, W: w, Data: make([]float64, h*w)}
}

// At returns the probability at row y, column x.
func (m Mask) At(y, x int) float64 {
	return m.Data[y*m.W+x]
}

// Set stores a probability at row y, column x.
func (m *Mask) Set(y, x int, v float64) {
	m.Data[y*m.W+x] = v
}

// Binarize thresholds the mask into a BinaryMask. A pixel is foreground
// when its probability is strictly greater than the threshold.
func (m Mask) Binarize(threshold float64) BinaryMask {
	bm := BinaryMask{H: m.H, W: m.W, Data: make([]uint8, len(m.Data))}
	for i, v := range m.Data {
		if v > threshold {
			bm.Data[i] = 1
		}
	}
	return bm
}

// Resize scales the mask to h×w using bilinear interpolation. Used to map a
// model-resolution mask back onto the source image so region boundaries stay
// meaningful at full resolution.
func (m Mask) Resize(h, w int) Mask {
	if h == m.H && w == m.W {
		out := Mask{H: h, W: w, Data: make([]float64, len(m.Data))}
		copy(out.Data, m.Data)
		return out
	}
	out := New(h, w)
	if m.H == 0 || m.W == 0 || h == 0 || w == 0 {
		return out
	}
	scaleY := float64(m.H) / float64(h)
	scaleX := float64(m.W) / float64(w)
	for y := 0; y < h; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		y0 := int(srcY)
		if srcY < 0 {
			srcY, y0 = 0, 0
		}
		y1 := y0 + 1
		if y1 >= m.H {
			y1 = m.H - 1
		}
		fy := srcY - float64(y0)
		for x := 0; x < w; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			x0 := int(srcX)
			if srcX < 0 {
				srcX, x0 = 0, 0
			}
			x1 := x0 + 1
			if x1 >= m.W {
				x1 = m.W - 1
			}
			fx := srcX - float64(x0)

			top := m.At(y0, x0)*(1-fx) + m.At(y0, x1)*fx
			bottom := m.At(y1, x0)*(1-fx) + m.At(y1, x1)*fx
			out.Set(y, x, top*(1-fy)+bottom*fy)
		}
	}
	return out
}

// BinaryMask is a mask thresholded to {0,1}, row-major.
type BinaryMask struct {
	H, W int
	Data []uint8
}

// NewBinary allocates an all-background binary mask.
func NewBinary(h, w int) BinaryMask {
	return BinaryMask{H: h, W: w, Data: make([]uint8, h*w)}
}

// At reports whether the pixel at row y, column x is foreground.
func (b BinaryMask) At(y, x int) uint8 {
	return b.Data[y*b.W+x]
}

// ForegroundCount returns the number of foreground pixels.
func (b BinaryMask) ForegroundCount() int {
	n := 0
	for _, v := range b.Data {
		if v == 1 {
			n++
		}
	}
	return n
}
