package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/emovision/internal/classifier"
	"github.com/example/emovision/internal/codec"
	"github.com/example/emovision/internal/emotion"
	"github.com/example/emovision/internal/ingest"
	"github.com/example/emovision/internal/repository"
	"github.com/example/emovision/internal/staging"
	"github.com/example/emovision/internal/wire"
)

// stdDecoder decodes with the stdlib image registry, standing in for the
// OpenCV decoder so tests run without native libraries.
type stdDecoder struct{}

func (stdDecoder) Decode(data []byte) (codec.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return codec.Image{}, codec.ErrUndecodable
	}
	return codec.Image{Width: cfg.Width, Height: cfg.Height}, nil
}

type fixedClassifier struct {
	reading emotion.Reading
}

func (f fixedClassifier) Analyze(ctx context.Context, imagePath string, opts classifier.Options) (emotion.Outcome, error) {
	return emotion.Single(f.reading), nil
}

type nopRepository struct{}

func (nopRepository) SaveLog(context.Context, *repository.AnalysisLog) error { return nil }
func (nopRepository) FindByRequestID(context.Context, string) (*repository.AnalysisLog, error) {
	return nil, errors.New("not found")
}
func (nopRepository) AggregateMetrics(context.Context) (*repository.MetricsAggregation, error) {
	return &repository.MetricsAggregation{TotalCount: 3, SuccessCount: 3, AverageLatencyMs: 12}, nil
}

// fullVocabularyReading scores every known label, dominated by the given one.
func fullVocabularyReading(dominant string) emotion.Reading {
	scores := make(map[string]float64, len(emotion.Labels))
	for _, label := range emotion.Labels {
		scores[label] = 0.5
	}
	scores[dominant] = 97.2
	return emotion.Reading{Dominant: dominant, Scores: scores}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stager, err := staging.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}
	svc := ingest.NewService(
		nopRepository{},
		nil,
		stdDecoder{},
		fixedClassifier{reading: fullVocabularyReading("neutral")},
		stager,
		zap.NewNop(),
	)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, svc, zap.NewNop())
	return router
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func solidColorJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeSolidColorImage(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := buildMultipartBody(t, "image/jpeg", solidColorJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		DominantEmotion string             `json:"dominant_emotion"`
		Emotions        map[string]float64 `json:"emotions"`
		Error           string             `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Error != "" {
		t.Fatalf("unexpected error payload: %s", payload.Error)
	}
	if payload.DominantEmotion == "" {
		t.Fatal("expected a dominant emotion")
	}
	if len(payload.Emotions) == 0 {
		t.Fatal("expected a non-empty emotions map")
	}
	if _, ok := payload.Emotions[payload.DominantEmotion]; !ok {
		t.Fatal("dominant emotion must appear in the emotions map")
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestAnalyzeEmptyBufferReturnsErrorPayloadWithOKStatus(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := buildMultipartBody(t, "image/jpeg", nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("internal faults must keep a normal status, got %d", resp.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 || payload["error"] == "" {
		t.Fatalf("expected exactly {\"error\": <msg>}, got %s", resp.Body.String())
	}
}

func TestAnalyzeAcceptsDeviceFramedUpload(t *testing.T) {
	// The device frames its upload by hand; the service must parse it with
	// its stock multipart machinery.
	router := newTestRouter(t)

	frame := solidColorJPEG(t)
	boundary := wire.NewBoundary()
	body := wire.Encode(frame, boundary)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.ContentLength = int64(len(body))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		DominantEmotion string `json:"dominant_emotion"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.DominantEmotion != "neutral" {
		t.Fatalf("unexpected dominant emotion: %s", payload.DominantEmotion)
	}
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := buildMultipartBody(t, "image/jpeg", bytes.Repeat([]byte("a"), MaxUploadSize+1))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestAnalyzeRequiresFilePart(t *testing.T) {
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("other", "value")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var summary ingest.MetricsSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.TotalRequests != 3 || summary.SuccessRate != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
