package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/forgery-detect/internal/imaging"
	"github.com/example/forgery-detect/internal/pipeline"
	"github.com/example/forgery-detect/internal/usecase"
)

// MaxUploadSize caps multipart uploads handled by the router.
const MaxUploadSize = imaging.MaxUploadSize

// Options carries the transport-level settings the routes need.
type Options struct {
	MaxBatchSize        int
	ConfidenceThreshold float64
	TargetImageSize     int
	// Ready reports whether the model engine is reachable; nil means no check.
	Ready func(ctx context.Context) error
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.AnalysisUseCase, opts Options) {
	router.GET("/health", func(c *gin.Context) {
		modelsLoaded := true
		if opts.Ready != nil {
			modelsLoaded = opts.Ready(c.Request.Context()) == nil
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
			"models_loaded": modelsLoaded,
		})
	})

	v1 := router.Group("/api/v1")

	v1.POST("/analyze", func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		data, status, message := readUpload(file)
		if status != http.StatusOK {
			c.JSON(status, gin.H{"error": message})
			return
		}

		img, err := imaging.Decode(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image file"})
			return
		}

		meta := pipeline.Meta{
			CaseID:   c.PostForm("case_id"),
			Filename: file.Filename,
			FileSize: len(data),
		}
		result, err := uc.AnalyzeImage(c.Request.Context(), img, meta)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	v1.POST("/batch-analyze", func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
			return
		}
		if len(files) > opts.MaxBatchSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch exceeds maximum size"})
			return
		}

		// Invalid uploads are filtered here, before the orchestrator runs;
		// decode validation is not the pipeline's concern.
		items := make([]pipeline.BatchItem, 0, len(files))
		for _, file := range files {
			data, status, _ := readUpload(file)
			if status != http.StatusOK {
				continue
			}
			img, err := imaging.Decode(data)
			if err != nil {
				continue
			}
			items = append(items, pipeline.BatchItem{
				Image: img,
				Meta: pipeline.Meta{
					CaseID:   pipeline.NewCaseID(),
					Filename: file.Filename,
					FileSize: len(data),
				},
			})
		}

		batch, err := uc.AnalyzeBatch(c.Request.Context(), items, len(files))
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrEmptyBatch):
				c.JSON(http.StatusBadRequest, gin.H{"error": "no valid images found"})
			case errors.Is(err, pipeline.ErrBatchTooLarge):
				c.JSON(http.StatusBadRequest, gin.H{"error": "batch exceeds maximum size"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "batch analysis failed: " + err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, batch)
	})

	v1.GET("/results/:case_id", func(c *gin.Context) {
		caseID := c.Param("case_id")
		record, err := uc.GetResult(c.Request.Context(), caseID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis result not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"case_id":       record.CaseID,
			"batch_id":      record.BatchID,
			"result":        record.Result,
			"confidence":    record.Confidence,
			"regions_count": record.RegionsCount,
			"filename":      record.Filename,
			"file_size":     record.FileSize,
			"timestamp":     record.CreatedAt,
		})
	})

	v1.GET("/statistics", func(c *gin.Context) {
		stats, err := uc.GetStatistics(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve statistics"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total_analyses":  stats.TotalAnalyses,
			"authentic_count": stats.AuthenticCount,
			"forged_count":    stats.ForgedCount,
			"avg_confidence":  stats.AvgConfidence,
			"model_info": gin.H{
				"confidence_threshold": opts.ConfidenceThreshold,
				"image_size":           opts.TargetImageSize,
			},
		})
	})
}

// readUpload validates and reads one multipart file. The returned status is
// http.StatusOK on success, otherwise the status the caller should respond
// with.
func readUpload(file *multipart.FileHeader) ([]byte, int, string) {
	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, "file too large"
	}
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, http.StatusUnsupportedMediaType, "file must be an image"
	}
	if !imaging.AllowedExtension(file.Filename) {
		return nil, http.StatusBadRequest, "file type not supported"
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, "unable to open image"
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to read image"
	}
	return data, http.StatusOK, ""
}
