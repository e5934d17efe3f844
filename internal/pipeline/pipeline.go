// Package pipeline composes inference, decision policy, region extraction
// and mask encoding into the single-image analysis operation, and runs that
// operation across batches with per-item failure isolation.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/logging"
	"github.com/example/forgery-detect/internal/mask"
	"github.com/example/forgery-detect/internal/policy"
	"github.com/example/forgery-detect/internal/regions"
)

// Inferrer is the slice of the inference adapter the pipeline consumes.
type Inferrer interface {
	Infer(ctx context.Context, img imaging.Image) (score float64, m mask.Mask, err error)
}

// Meta carries caller-supplied identity for one image through the pipeline,
// so parallel execution can never mismatch an image with the wrong filename.
type Meta struct {
	CaseID   string
	Filename string
	FileSize int
}

// RegionInfo is the serializable form of one suspected region.
type RegionInfo struct {
	Coordinates [2][2]int `json:"coordinates"`
	Confidence  float64   `json:"confidence"`
	Area        int       `json:"area"`
}

// AnalysisResult is the immutable outcome of analyzing one image.
type AnalysisResult struct {
	CaseID     string         `json:"case_id"`
	BatchID    string         `json:"batch_id,omitempty"`
	Result     policy.Verdict `json:"result"`
	Confidence float64        `json:"confidence"`
	Mask       string         `json:"mask"`
	Regions    []RegionInfo   `json:"regions"`
	Filename   string         `json:"filename"`
	FileSize   int            `json:"file_size"`
	Timestamp  string         `json:"timestamp"`
}

// Analyzer runs the fixed single-image analysis sequence.
type Analyzer struct {
	inferrer  Inferrer
	threshold float64
	logger    *zap.Logger
}

// NewAnalyzer constructs an analyzer with the given confidence threshold.
func NewAnalyzer(inferrer Inferrer, threshold float64, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		inferrer:  inferrer,
		threshold: threshold,
		logger:    logger.Named("analyzer"),
	}
}

// NewCaseID synthesizes a short unique case identifier.
func NewCaseID() string {
	return "img_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Analyze runs inference, classification and, for forged verdicts, region
// extraction and mask encoding. Inference errors propagate to the caller,
// which owns the isolation policy; region extraction failures have already
// degraded to an empty list below this level.
func (a *Analyzer) Analyze(ctx context.Context, img imaging.Image, meta Meta) (*AnalysisResult, error) {
	caseID := meta.CaseID
	if caseID == "" {
		caseID = NewCaseID()
	}
	opLogger := logging.WithOperation(a.logger, "pipeline.analyze", caseID)

	score, m, err := a.inferrer.Infer(ctx, img)
	if err != nil {
		opLogger.Error("inference failed", zap.Error(err))
		return nil, logging.NewOperationError("pipeline.analyze", caseID, err)
	}

	verdict := policy.Classify(score, a.threshold)

	encoded := ""
	regionInfos := []RegionInfo{}
	if verdict == policy.Forged {
		bm := m.Binarize(a.threshold)
		encoded = mask.Encode(bm)
		for _, r := range regions.Extract(bm) {
			regionInfos = append(regionInfos, RegionInfo{
				Coordinates: [2][2]int{{r.X1, r.Y1}, {r.X2, r.Y2}},
				Confidence:  r.Confidence,
				Area:        r.Area,
			})
		}
	}

	opLogger.Info("analysis complete",
		zap.String("result", string(verdict)),
		zap.Float64("confidence", score),
		zap.Int("regions", len(regionInfos)),
	)

	return &AnalysisResult{
		CaseID:     caseID,
		Result:     verdict,
		Confidence: score,
		Mask:       encoded,
		Regions:    regionInfos,
		Filename:   meta.Filename,
		FileSize:   meta.FileSize,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}
