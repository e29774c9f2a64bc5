package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/darshan-hindocha/plexe-technical/internal/artifact"
	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/storage"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// batchWorkers bounds concurrent items inside one batch request.
const batchWorkers = 4

type PredictionResult struct {
	Prediction  float64   `json:"prediction"`
	Probability *float64  `json:"probability"`
	Confidence  *string   `json:"confidence"`
	ModelID     uuid.UUID `json:"model_id"`
}

// BatchItem is one positional slot of a batch prediction. Exactly one of
// Result and Err is set; a failed item never affects its neighbors.
type BatchItem struct {
	Result *PredictionResult
	Err    error
}

type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing_features"`
	Extra   []string `json:"extra_features"`
}

// Loader turns a model record into an inference-ready model. Injectable so
// tests can count loads or fail on demand.
type Loader func(ctx context.Context, rec *types.ModelRecord) (artifact.Model, error)

type PredictorService interface {
	Predict(ctx context.Context, id uuid.UUID, features map[string]float64) (*PredictionResult, error)
	PredictBatch(ctx context.Context, id uuid.UUID, items []map[string]float64) ([]BatchItem, error)
	ValidateFeatures(ctx context.Context, id uuid.UUID, features map[string]float64) (*ValidationResult, error)
	Evict(id uuid.UUID)
}

type predictorService struct {
	log      *logger.Logger
	registry RegistryService
	loader   Loader

	cacheMu sync.RWMutex
	cache   map[uuid.UUID]artifact.Model
	// evictions counts Evict calls per id so a load that was in flight when
	// the id was evicted never re-inserts a stale model.
	evictions map[uuid.UUID]uint64
	group     singleflight.Group
}

// NewPredictorService builds the predictor. A nil loader reads artifact bytes
// from blobs and deserializes them with the artifact package.
func NewPredictorService(
	baseLog *logger.Logger,
	registry RegistryService,
	blobs storage.BlobStore,
	loader Loader,
) PredictorService {
	if loader == nil {
		loader = func(ctx context.Context, rec *types.ModelRecord) (artifact.Model, error) {
			data, err := blobs.Get(ctx, rec.StoragePath)
			if err != nil {
				return nil, err
			}
			return artifact.Load(data)
		}
	}
	p := &predictorService{
		log:       baseLog.With("service", "PredictorService"),
		registry:  registry,
		loader:    loader,
		cache:     map[uuid.UUID]artifact.Model{},
		evictions: map[uuid.UUID]uint64{},
	}
	registry.SetEvictor(p)
	return p
}

func (s *predictorService) Predict(ctx context.Context, id uuid.UUID, features map[string]float64) (*PredictionResult, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	row, err := buildRow(rec, features)
	if err != nil {
		return nil, err
	}

	model, err := s.loadModel(ctx, rec)
	if err != nil {
		return nil, err
	}

	out, err := model.Predict(row)
	if err != nil {
		return nil, &modelerr.InferenceError{Err: err}
	}

	res := &PredictionResult{
		Prediction:  out.Value,
		Probability: out.Probability,
		ModelID:     rec.ID,
	}
	if out.Probability != nil {
		c := confidenceFor(*out.Probability)
		res.Confidence = &c
	}
	return res, nil
}

func (s *predictorService) PredictBatch(ctx context.Context, id uuid.UUID, items []map[string]float64) ([]BatchItem, error) {
	// The model must exist before fanning out; a bad id fails the whole call
	// rather than producing N identical not-found slots.
	if _, err := s.registry.Get(ctx, id); err != nil {
		return nil, err
	}

	results := make([]BatchItem, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for i, features := range items {
		g.Go(func() error {
			res, err := s.Predict(gctx, id, features)
			if err != nil {
				results[i] = BatchItem{Err: err}
				return nil
			}
			results[i] = BatchItem{Result: res}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *predictorService) ValidateFeatures(ctx context.Context, id uuid.UUID, features map[string]float64) (*ValidationResult, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	missing, extra := diffFeatures(rec, features)
	return &ValidationResult{
		Valid:   len(missing) == 0,
		Missing: missing,
		Extra:   extra,
	}, nil
}

func (s *predictorService) Evict(id uuid.UUID) {
	s.cacheMu.Lock()
	delete(s.cache, id)
	s.evictions[id]++
	s.cacheMu.Unlock()
	s.group.Forget(id.String())
}

// loadModel returns the cached model for rec, deserializing it at most once
// across concurrent callers.
func (s *predictorService) loadModel(ctx context.Context, rec *types.ModelRecord) (artifact.Model, error) {
	s.cacheMu.RLock()
	model, ok := s.cache[rec.ID]
	s.cacheMu.RUnlock()
	if ok {
		return model, nil
	}

	v, err, _ := s.group.Do(rec.ID.String(), func() (interface{}, error) {
		s.cacheMu.RLock()
		model, ok := s.cache[rec.ID]
		gen := s.evictions[rec.ID]
		s.cacheMu.RUnlock()
		if ok {
			return model, nil
		}

		loaded, err := s.loader(ctx, rec)
		if err != nil {
			if markErr := s.registry.MarkStatus(ctx, rec.ID, types.ModelStatusError); markErr != nil {
				s.log.Warn("failed to record load failure", "error", markErr, "model_id", rec.ID)
			}
			return nil, &modelerr.LoadError{ModelID: rec.ID.String(), Err: err}
		}

		s.cacheMu.Lock()
		if s.evictions[rec.ID] == gen {
			s.cache[rec.ID] = loaded
		}
		s.cacheMu.Unlock()

		if rec.Status == types.ModelStatusUploaded {
			if markErr := s.registry.MarkStatus(ctx, rec.ID, types.ModelStatusDeployed); markErr != nil {
				s.log.Warn("failed to mark model deployed", "error", markErr, "model_id", rec.ID)
			}
		}
		s.log.Info("loaded model into cache", "model_id", rec.ID, "name", rec.Name, "version", rec.Version)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(artifact.Model), nil
}

// buildRow validates the request features against the record's declared
// schema and produces the ordered input vector. Unknown extra keys are
// ignored on purpose (tolerant-input policy).
func buildRow(rec *types.ModelRecord, features map[string]float64) ([]float64, error) {
	if len(rec.FeatureNames) > 0 {
		missing, _ := diffFeatures(rec, features)
		if len(missing) > 0 {
			return nil, &modelerr.MissingFeaturesError{Missing: missing}
		}
		row := make([]float64, len(rec.FeatureNames))
		for i, name := range rec.FeatureNames {
			row[i] = features[name]
		}
		return row, nil
	}

	// No declared schema: the best available ordering is lexicographic by
	// key, checked against the artifact's feature count.
	if rec.NumFeatures > 0 && len(features) != rec.NumFeatures {
		return nil, &modelerr.MissingFeaturesError{
			Missing: []string{fmt.Sprintf("expected %d features, got %d", rec.NumFeatures, len(features))},
		}
	}
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	row := make([]float64, len(keys))
	for i, k := range keys {
		row[i] = features[k]
	}
	return row, nil
}

func diffFeatures(rec *types.ModelRecord, features map[string]float64) (missing, extra []string) {
	declared := map[string]bool{}
	for _, name := range rec.FeatureNames {
		declared[name] = true
		if _, ok := features[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(rec.FeatureNames) > 0 {
		keys := make([]string, 0, len(features))
		for k := range features {
			if !declared[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		extra = keys
	}
	return missing, extra
}

// confidenceFor maps a predicted-class probability onto a qualitative band.
// Probabilities far from the 0.5 decision boundary are "high": >= 0.8 or
// <= 0.2; "medium" covers [0.6, 0.8) and (0.2, 0.4]; everything near 0.5 is
// "low". The exact cutoffs are a policy choice pinned by tests.
func confidenceFor(p float64) string {
	switch {
	case p >= 0.8 || p <= 0.2:
		return "high"
	case p >= 0.6 || p <= 0.4:
		return "medium"
	default:
		return "low"
	}
}
