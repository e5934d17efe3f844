package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/logging"
	"github.com/example/forgery-detect/internal/mask"
)

// RemoteEngine calls an external model server over HTTP: the image goes up
// as a multipart PNG, the score and dense mask come back as JSON.
type RemoteEngine struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewRemoteEngine builds a client for the model server at url.
func NewRemoteEngine(url string, logger *zap.Logger) *RemoteEngine {
	return &RemoteEngine{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger.Named("remote_engine"),
	}
}

type predictResponse struct {
	Score      float64   `json:"score"`
	MaskHeight int       `json:"mask_height"`
	MaskWidth  int       `json:"mask_width"`
	Mask       []float64 `json:"mask"`
}

// Predict implements Engine.
func (e *RemoteEngine) Predict(ctx context.Context, img imaging.Image) (float64, mask.Mask, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.encode", "", err)
	}
	if err := png.Encode(part, img.ToImage()); err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.encode", "", err)
	}
	if err := writer.Close(); err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.encode", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, body)
	if err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.request", "", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("model server call failed", zap.Error(err))
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.request", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("model server returned status %d", resp.StatusCode)
		e.logger.Error("model server call failed", zap.Int("status", resp.StatusCode))
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.request", "", err)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.decode", "", err)
	}
	if parsed.MaskHeight <= 0 || parsed.MaskWidth <= 0 || len(parsed.Mask) != parsed.MaskHeight*parsed.MaskWidth {
		err := fmt.Errorf("model server returned %dx%d mask with %d values",
			parsed.MaskHeight, parsed.MaskWidth, len(parsed.Mask))
		return 0, mask.Mask{}, logging.NewOperationError("inference.remote.decode", "", err)
	}

	m := mask.Mask{H: parsed.MaskHeight, W: parsed.MaskWidth, Data: parsed.Mask}
	return parsed.Score, m, nil
}

// CheckHealth pings the model server's health endpoint.
func (e *RemoteEngine) CheckHealth(ctx context.Context) error {
	healthURL := strings.TrimSuffix(e.url, "/predict") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
