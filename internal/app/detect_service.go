package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"pothole-detect/internal/logger"
	"pothole-detect/internal/model"
	"pothole-detect/internal/storage"
)

var (
	ErrUploadSave     = errors.New("upload could not be saved")
	ErrDetectionPanic = errors.New("detection panicked")
)

type DetectService struct {
	scratch   *storage.ScratchStore
	predictor Predictor
	cache     ResultCache
	publisher EventPublisher
	now       func() time.Time
}

// Predictor runs the classifier against an image file on disk.
type Predictor interface {
	PredictFile(ctx context.Context, path string) (model.Prediction, error)
}

type ResultCache interface {
	Get(ctx context.Context, digest string) (model.Prediction, bool, error)
	Set(ctx context.Context, digest string, p model.Prediction) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.DetectionEvent) error
}

type DetectInput struct {
	Filename string
	Body     io.Reader
}

// NewDetectService wires the detection pipeline. cache and publisher may be nil.
func NewDetectService(
	scratch *storage.ScratchStore,
	predictor Predictor,
	cache ResultCache,
	publisher EventPublisher,
) *DetectService {
	return &DetectService{
		scratch:   scratch,
		predictor: predictor,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

// Detect persists the upload to a unique scratch file, classifies it and
// removes the file again. Prediction failures are returned unchanged so the
// caller can inspect their kind.
func (s *DetectService) Detect(ctx context.Context, in DetectInput) (model.Prediction, error) {
	log := logger.FromContext(ctx)

	file, err := s.scratch.Save(ctx, in.Filename, in.Body)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("%w: %w", ErrUploadSave, err)
	}
	log.Debug("file saved", "path", file.Path, "name", file.Name, "bytes", file.Size, "content_type", file.ContentType)

	defer func() {
		if rmErr := s.scratch.Remove(file.Path); rmErr != nil {
			log.Warn("remove scratch file failed", "path", file.Path, "error", rmErr)
		}
	}()

	if p, ok := s.cached(ctx, file.SHA256); ok {
		log.Debug("cached prediction", "is_pothole", p.IsPothole, "confidence", p.Confidence)
		s.publish(ctx, file, p, true)
		return p, nil
	}

	p, err := s.predict(ctx, file.Path)
	if err != nil {
		return model.Prediction{}, err
	}
	log.Debug("model prediction result", "is_pothole", p.IsPothole, "confidence", p.Confidence)

	if s.cache != nil {
		if err := s.cache.Set(ctx, file.SHA256, p); err != nil {
			log.Warn("cache detection failed", "error", err)
		}
	}
	s.publish(ctx, file, p, false)
	return p, nil
}

// predict keeps a panic inside the model runtime from escaping as anything
// other than an ordinary failure.
func (s *DetectService) predict(ctx context.Context, path string) (p model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDetectionPanic, r)
		}
	}()
	return s.predictor.PredictFile(ctx, path)
}

func (s *DetectService) cached(ctx context.Context, digest string) (model.Prediction, bool) {
	if s.cache == nil {
		return model.Prediction{}, false
	}
	p, ok, err := s.cache.Get(ctx, digest)
	if err != nil {
		logger.FromContext(ctx).Warn("read detection cache failed", "error", err)
		return model.Prediction{}, false
	}
	return p, ok
}

func (s *DetectService) publish(ctx context.Context, file *storage.ScratchFile, p model.Prediction, cached bool) {
	if s.publisher == nil {
		return
	}
	event := model.DetectionEvent{
		ID:         uuid.NewString(),
		RequestID:  logger.GetRequestID(ctx),
		Filename:   file.Name,
		SHA256:     file.SHA256,
		IsPothole:  p.IsPothole,
		Confidence: p.Confidence,
		Cached:     cached,
		DetectedAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx).Warn("publish detection event failed", "error", err)
	}
}
