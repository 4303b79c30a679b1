package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/emovision/internal/emotion"
	"github.com/example/emovision/internal/logging"
)

// HTTPClient talks to a DeepFace-style sidecar over its JSON API. The
// sidecar shares a filesystem with this process and reads the staged image
// itself.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient builds a classifier client. The timeout bounds each analysis
// call end to end.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("classifier"),
	}
}

type analyzeRequest struct {
	ImgPath          string   `json:"img_path"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
}

// Analyze submits one staged image for emotion analysis. The sidecar answers
// with either a single reading object or a per-face array; both shapes are
// resolved into a tagged outcome instead of being sniffed by the caller.
func (c *HTTPClient) Analyze(ctx context.Context, imagePath string, opts Options) (emotion.Outcome, error) {
	payload, err := json.Marshal(analyzeRequest{
		ImgPath:          imagePath,
		Actions:          []string{"emotion"},
		EnforceDetection: opts.EnforceDetection,
	})
	if err != nil {
		return emotion.Outcome{}, logging.NewOperationError("classifier.marshal_request", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return emotion.Outcome{}, logging.NewOperationError("classifier.build_request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		wrapped := logging.NewOperationError("classifier.analyze", "", err)
		c.logger.Error("classifier call failed", zap.Error(wrapped))
		return emotion.Outcome{}, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return emotion.Outcome{}, logging.NewOperationError("classifier.read_response", "", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		c.logger.Error("classifier rejected request", zap.Int("status", resp.StatusCode))
		return emotion.Outcome{}, logging.NewOperationError("classifier.analyze", "", err)
	}

	return decodeOutcome(body)
}

// decodeOutcome maps the sidecar's list-or-single response shape onto the
// tagged Outcome variant.
func decodeOutcome(body []byte) (emotion.Outcome, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var readings []emotion.Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return emotion.Outcome{}, logging.NewOperationError("classifier.decode_response", "", err)
		}
		return emotion.Many(readings), nil
	}

	var reading emotion.Reading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		return emotion.Outcome{}, logging.NewOperationError("classifier.decode_response", "", err)
	}
	return emotion.Single(reading), nil
}
