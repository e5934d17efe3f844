// Package inference wraps the opaque predictive capability behind a narrow
// contract and normalizes its geometry to the source image.
package inference

import (
	"context"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/mask"
)

// Engine is the opaque model capability: given an image it produces a scalar
// forgery score and a dense per-pixel probability mask. The mask may be at
// the engine's internal resolution rather than the input's.
type Engine interface {
	Predict(ctx context.Context, img imaging.Image) (score float64, m mask.Mask, err error)
}

// HealthChecker is implemented by engines that can report readiness.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
