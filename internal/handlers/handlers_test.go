package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/pipeline"
	"github.com/example/forgery-detect/internal/repository"
	"github.com/example/forgery-detect/internal/usecase"
)

type stubRepo struct {
	saved      []*repository.AnalysisRecord
	findRecord *repository.AnalysisRecord
}

func (s *stubRepo) Save(ctx context.Context, record *repository.AnalysisRecord) error {
	s.saved = append(s.saved, record)
	return nil
}

func (s *stubRepo) FindByCaseID(ctx context.Context, caseID string) (*repository.AnalysisRecord, error) {
	if s.findRecord != nil && s.findRecord.CaseID == caseID {
		return s.findRecord, nil
	}
	return nil, errors.New("not found")
}

func (s *stubRepo) AggregateStats(ctx context.Context) (*repository.StatsAggregation, error) {
	return &repository.StatsAggregation{TotalCount: 2, AuthenticCount: 1, ForgedCount: 1, AvgConfidence: 0.6}, nil
}

type stubCache struct{}

func (stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (stubCache) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("cache miss")
}

type stubAnalyzer struct {
	result *pipeline.AnalysisResult
	err    error
	calls  int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, img imaging.Image, meta pipeline.Meta) (*pipeline.AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	result := *s.result
	if meta.CaseID != "" {
		result.CaseID = meta.CaseID
	}
	result.Filename = meta.Filename
	return &result, nil
}

func newTestRouter(t *testing.T, analyzer *stubAnalyzer, repo *stubRepo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	runner := pipeline.NewBatchRunner(analyzer, 10, 2, zap.NewNop())
	uc := usecase.NewAnalysisUseCase(analyzer, runner, repo, stubCache{}, 10, zap.NewNop())

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, uc, Options{
		MaxBatchSize:        10,
		ConfidenceThreshold: 0.5,
		TargetImageSize:     512,
	})
	return router
}

func defaultForgedResult() *pipeline.AnalysisResult {
	return &pipeline.AnalysisResult{
		CaseID:     "img_deadbeef",
		Result:     "forged",
		Confidence: 0.82,
		Mask:       "[(10, 1)]",
		Regions:    []pipeline.RegionInfo{{Coordinates: [2][2]int{{20, 20}, {30, 30}}, Confidence: 1.0, Area: 100}},
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

type uploadPart struct {
	field       string
	filename    string
	contentType string
	payload     []byte
}

func buildMultipartBody(t *testing.T, parts []uploadPart) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		header.Set("Content-Type", p.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create multipart part: %v", err)
		}
		if _, err := part.Write(p.payload); err != nil {
			t.Fatalf("failed to write payload: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func performRequest(router *gin.Engine, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "file", filename: "big.png", contentType: "image/png", payload: bytes.Repeat([]byte("a"), MaxUploadSize+1)},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/analyze", body, contentType)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected no analysis, got %d calls", analyzer.calls)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "file", filename: "notes.png", contentType: "text/plain", payload: []byte("hello")},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/analyze", body, contentType)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedExtension(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "file", filename: "archive.gif", contentType: "image/gif", payload: testPNG(t)},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/analyze", body, contentType)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestAnalyzeReturnsResult(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	repo := &stubRepo{}
	router := newTestRouter(t, analyzer, repo)

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "file", filename: "scan.png", contentType: "image/png", payload: testPNG(t)},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/analyze", body, contentType)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var result pipeline.AnalysisResult
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if result.Result != "forged" || result.Confidence != 0.82 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Regions) != 1 || result.Regions[0].Coordinates != [2][2]int{{20, 20}, {30, 30}} {
		t.Fatalf("unexpected regions %+v", result.Regions)
	}
	if result.Filename != "scan.png" {
		t.Fatalf("filename lost: %q", result.Filename)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected record persisted, got %d", len(repo.saved))
	}
}

func TestBatchAnalyzeRejectsEmptyBatch(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "other", filename: "scan.png", contentType: "image/png", payload: testPNG(t)},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/batch-analyze", body, contentType)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected no analyses, got %d", analyzer.calls)
	}
}

func TestBatchAnalyzeRejectsOversizedBatch(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	parts := make([]uploadPart, 11)
	for i := range parts {
		parts[i] = uploadPart{field: "files", filename: "scan.png", contentType: "image/png", payload: testPNG(t)}
	}
	body, contentType := buildMultipartBody(t, parts)
	resp := performRequest(router, http.MethodPost, "/api/v1/batch-analyze", body, contentType)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if analyzer.calls != 0 {
		t.Fatalf("expected rejection before any analysis, got %d calls", analyzer.calls)
	}
}

func TestBatchAnalyzeFiltersInvalidUploads(t *testing.T) {
	analyzer := &stubAnalyzer{result: defaultForgedResult()}
	router := newTestRouter(t, analyzer, &stubRepo{})

	body, contentType := buildMultipartBody(t, []uploadPart{
		{field: "files", filename: "good.png", contentType: "image/png", payload: testPNG(t)},
		{field: "files", filename: "broken.png", contentType: "image/png", payload: []byte("not an image")},
	})
	resp := performRequest(router, http.MethodPost, "/api/v1/batch-analyze", body, contentType)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var batch pipeline.BatchResult
	if err := json.Unmarshal(resp.Body.Bytes(), &batch); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if batch.TotalImages != 2 {
		t.Fatalf("expected total 2, got %d", batch.TotalImages)
	}
	if batch.ProcessedImages != 1 || len(batch.Results) != 1 {
		t.Fatalf("expected 1 processed image, got %+v", batch)
	}
	if batch.Results[0].Filename != "good.png" {
		t.Fatalf("unexpected result %+v", batch.Results[0])
	}
}

func TestGetResult(t *testing.T) {
	repo := &stubRepo{findRecord: &repository.AnalysisRecord{
		CaseID:     "img_known001",
		Result:     "forged",
		Confidence: 0.82,
		Filename:   "scan.png",
	}}
	router := newTestRouter(t, &stubAnalyzer{result: defaultForgedResult()}, repo)

	resp := performRequest(router, http.MethodGet, "/api/v1/results/img_known001", &bytes.Buffer{}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}

	resp = performRequest(router, http.MethodGet, "/api/v1/results/img_missing0", &bytes.Buffer{}, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestStatistics(t *testing.T) {
	router := newTestRouter(t, &stubAnalyzer{result: defaultForgedResult()}, &stubRepo{})

	resp := performRequest(router, http.MethodGet, "/api/v1/statistics", &bytes.Buffer{}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["total_analyses"].(float64) != 2 {
		t.Fatalf("unexpected statistics payload %v", payload)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubAnalyzer{result: defaultForgedResult()}, &stubRepo{})

	resp := performRequest(router, http.MethodGet, "/health", &bytes.Buffer{}, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "healthy" || payload["models_loaded"] != true {
		t.Fatalf("unexpected health payload %v", payload)
	}
}
