package inference

import (
	"context"
	"sync"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/logging"
	"github.com/example/forgery-detect/internal/mask"
)

// Adapter owns the geometry around an Engine call: it resizes the input to
// the model's expected square resolution, resizes the returned mask back to
// the source dimensions, and clamps the score into [0,1].
type Adapter struct {
	engine     Engine
	targetSize int

	// mu serializes engine calls when the underlying device can only run
	// one inference at a time. Lock scope is the Predict call only; resize
	// work on either side runs unlocked.
	mu *sync.Mutex
}

// NewAdapter wraps an engine. targetSize is the square resolution the model
// expects. serializeDevice must be set when the engine's execution device
// cannot run concurrent inferences.
func NewAdapter(engine Engine, targetSize int, serializeDevice bool) *Adapter {
	a := &Adapter{engine: engine, targetSize: targetSize}
	if serializeDevice {
		a.mu = &sync.Mutex{}
	}
	return a
}

// Infer runs the model against img and returns a score in [0,1] plus a
// probability mask at the image's own resolution.
func (a *Adapter) Infer(ctx context.Context, img imaging.Image) (float64, mask.Mask, error) {
	input := img.ResizeSquare(a.targetSize)

	if a.mu != nil {
		a.mu.Lock()
	}
	score, m, err := a.engine.Predict(ctx, input)
	if a.mu != nil {
		a.mu.Unlock()
	}
	if err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.predict", "", err)
	}

	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	if m.H != img.H || m.W != img.W {
		m = m.Resize(img.H, img.W)
	}
	return score, m, nil
}
