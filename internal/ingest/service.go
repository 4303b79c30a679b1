// Package ingest implements the server-side analysis flow: decode an
// uploaded frame, stage it for the classifier, and normalize the outcome.
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/emovision/internal/classifier"
	"github.com/example/emovision/internal/codec"
	"github.com/example/emovision/internal/emotion"
	"github.com/example/emovision/internal/logging"
	"github.com/example/emovision/internal/repository"
)

// Repository defines the persistence operations needed by the service.
type Repository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Stager stages image bytes for collaborators that need a file path.
type Stager interface {
	Stash(data []byte) (string, func(), error)
}

// Service orchestrates decoding, staging, classification, and normalization
// for one upload at a time. It keeps no per-request state, so the router may
// run any number of invocations concurrently.
type Service struct {
	repo       Repository
	cache      Cache
	decoder    codec.Decoder
	classifier classifier.Classifier
	stager     Stager
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewService constructs the analysis service.
func NewService(repo Repository, cache Cache, decoder codec.Decoder, cls classifier.Classifier, stager Stager, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		decoder:    decoder,
		classifier: cls,
		stager:     stager,
		logger:     logger.Named("ingest"),
		cacheTTL:   5 * time.Minute,
	}
}

// Analyze runs the full pipeline over one raw frame. Whatever happens inside
// is reported through the error return; callers at the transport boundary
// convert it into the error payload rather than a transport failure.
func (s *Service) Analyze(ctx context.Context, frame []byte) (string, *emotion.Result, error) {
	requestID := uuid.NewString()
	started := time.Now()

	hash := sha1.Sum(frame)
	hashHex := hex.EncodeToString(hash[:])

	result, err := s.analyze(ctx, requestID, hashHex, frame)
	s.record(ctx, requestID, hashHex, result, err, time.Since(started))
	if err != nil {
		return requestID, nil, err
	}
	return requestID, result, nil
}

func (s *Service) analyze(ctx context.Context, requestID, hashHex string, frame []byte) (*emotion.Result, error) {
	opLogger := logging.WithOperation(s.logger, "ingest.analyze", requestID)

	if cached, ok := s.cachedResult(ctx, requestID, hashHex); ok {
		opLogger.Info("serving cached analysis", zap.String("sha1", hashHex))
		return cached, nil
	}

	img, err := s.decoder.Decode(frame)
	if err != nil {
		wrapped := logging.NewOperationError("ingest.decode", requestID, err)
		opLogger.Error("image decode failed", zap.Error(wrapped), zap.Int("bytes", len(frame)))
		return nil, wrapped
	}
	opLogger.Info("image decoded", zap.Int("width", img.Width), zap.Int("height", img.Height))

	path, cleanup, err := s.stager.Stash(frame)
	if err != nil {
		wrapped := logging.NewOperationError("ingest.stage", requestID, err)
		opLogger.Error("staging failed", zap.Error(wrapped))
		return nil, wrapped
	}
	defer cleanup()

	outcome, err := s.classifier.Analyze(ctx, path, classifier.Options{EnforceDetection: false})
	if err != nil {
		wrapped := logging.NewOperationError("ingest.classify", requestID, err)
		opLogger.Error("classification failed", zap.Error(wrapped))
		return nil, wrapped
	}

	reading, err := outcome.First()
	if err != nil {
		wrapped := logging.NewOperationError("ingest.classify", requestID, err)
		opLogger.Error("classifier produced no readings", zap.Error(wrapped))
		return nil, wrapped
	}

	result, err := emotion.Normalize(reading)
	if err != nil {
		wrapped := logging.NewOperationError("ingest.normalize", requestID, err)
		opLogger.Error("result normalization failed", zap.Error(wrapped))
		return nil, wrapped
	}

	s.cacheResult(ctx, requestID, hashHex, result)
	return result, nil
}

// GetResult loads the persisted analysis log for one request.
func (s *Service) GetResult(ctx context.Context, requestID string) (*repository.AnalysisLog, error) {
	return s.repo.FindByRequestID(ctx, requestID)
}

// cachedResult looks up a previous analysis of the same bytes. Cache faults
// degrade to a miss; they never fail the request.
func (s *Service) cachedResult(ctx context.Context, requestID, hashHex string) (*emotion.Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	opLogger := logging.WithOperation(s.logger, "cache.get.result", requestID)

	value, err := s.cache.Get(ctx, cacheKey(hashHex))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			opLogger.Warn("failed to read cache", zap.Error(err))
		}
		return nil, false
	}

	var result emotion.Result
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		opLogger.Warn("failed to decode cached result", zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (s *Service) cacheResult(ctx context.Context, requestID, hashHex string, result *emotion.Result) {
	if s.cache == nil {
		return
	}
	opLogger := logging.WithOperation(s.logger, "cache.set.result", requestID)

	serialized, err := json.Marshal(result)
	if err != nil {
		opLogger.Warn("failed to serialize result for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKey(hashHex), string(serialized), s.cacheTTL); err != nil {
		opLogger.Warn("failed to cache result", zap.Error(err))
	}
}

// record persists an audit row for the request, success or failure. Like the
// cache, persistence is best-effort: the device still gets its response when
// the database is down.
func (s *Service) record(ctx context.Context, requestID, hashHex string, result *emotion.Result, analyzeErr error, latency time.Duration) {
	if s.repo == nil {
		return
	}

	log := &repository.AnalysisLog{
		RequestID: requestID,
		SHA1Hash:  hashHex,
		Succeeded: analyzeErr == nil,
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
		CreatedAt: time.Now().UTC(),
	}
	if analyzeErr != nil {
		log.Error = analyzeErr.Error()
	} else {
		log.DominantEmotion = result.DominantEmotion
		if details, err := json.Marshal(result.Emotions); err == nil {
			log.Details = string(details)
		}
	}

	if err := s.repo.SaveLog(ctx, log); err != nil {
		logging.WithOperation(s.logger, "ingest.save_log", requestID).Warn("failed to persist analysis log", zap.Error(err))
	}
}

func cacheKey(hashHex string) string {
	return "analysis:" + hashHex
}
