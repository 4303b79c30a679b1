package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/emovision/internal/emotion"
	"github.com/example/emovision/internal/ingest"
	"github.com/example/emovision/internal/repository"
)

// MaxUploadSize bounds an upload body. Device frames are a few hundred KiB.
const MaxUploadSize = 10 << 20

// uploadField is the multipart part name the capture device sends.
const uploadField = "file"

// Analyzer is the service surface the routes depend on.
type Analyzer interface {
	Analyze(ctx context.Context, frame []byte) (string, *emotion.Result, error)
	GetResult(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	GetMetricsSummary(ctx context.Context) (*ingest.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Analyzer, logger *zap.Logger) {
	log := logger.Named("handlers")

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The analysis contract is "always respond": once the upload itself has
	// been accepted, every internal fault is returned as an error payload
	// with a normal status. Only transport-level rejections (body too big,
	// part missing, wrong media type) use non-200 codes.
	router.POST("/analyze", func(c *gin.Context) {
		if c.Request.ContentLength > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}

		file, err := c.FormFile(uploadField)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file part is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}

		if declared := file.Header.Get("Content-Type"); declared != "" &&
			!strings.HasPrefix(declared, "image/") &&
			declared != "application/octet-stream" {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "expected an image upload"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open upload"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"error": "failed to read upload"})
			return
		}

		requestID, result, err := svc.Analyze(c.Request.Context(), data)
		c.Header("X-Request-ID", requestID)
		if err != nil {
			log.Warn("analysis failed", zap.String("request_id", requestID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"dominant_emotion": result.DominantEmotion,
			"emotions":         result.Emotions,
		})
	})

	router.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")

		row, err := svc.GetResult(c.Request.Context(), requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":       row.RequestID,
			"sha1_hash":        row.SHA1Hash,
			"dominant_emotion": row.DominantEmotion,
			"succeeded":        row.Succeeded,
			"details":          row.Details,
			"latency_ms":       row.LatencyMs,
			"created_at":       row.CreatedAt,
		})
	})

	router.GET("/metrics", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics unavailable"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}
