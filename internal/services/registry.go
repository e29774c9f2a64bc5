package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/darshan-hindocha/plexe-technical/internal/artifact"
	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/repos"
	"github.com/darshan-hindocha/plexe-technical/internal/storage"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// Evictor is notified when a model record is removed so any cached loaded
// model for that id can be dropped before Delete returns.
type Evictor interface {
	Evict(id uuid.UUID)
}

type RegisterInput struct {
	Name        string
	Description string
	Filename    string
	Data        []byte
	ParentID    *uuid.UUID
}

type PreviewResult struct {
	Info          *artifact.Info
	SuggestedName string
	FileSize      int64
}

// RegistryService is the source of truth for model families and versions.
type RegistryService interface {
	Register(ctx context.Context, in RegisterInput) (*types.ModelRecord, error)
	Preview(data []byte, filename string) (*PreviewResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.ModelRecord, error)
	List(ctx context.Context, latestOnly bool) ([]*types.ModelRecord, error)
	GetVersions(ctx context.Context, name string) ([]*types.ModelRecord, error)
	FindLatestByName(ctx context.Context, name string) (*types.ModelRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkStatus(ctx context.Context, id uuid.UUID, status types.ModelStatus) error
	CountByStatus(ctx context.Context) (map[types.ModelStatus]int64, error)
	SetEvictor(e Evictor)
}

type registryService struct {
	db       *gorm.DB
	log      *logger.Logger
	records  repos.ModelRecordRepo
	blobs    storage.BlobStore
	families *keyedMutex

	evictorMu sync.RWMutex
	evictor   Evictor
}

func NewRegistryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	records repos.ModelRecordRepo,
	blobs storage.BlobStore,
) RegistryService {
	return &registryService{
		db:       db,
		log:      baseLog.With("service", "RegistryService"),
		records:  records,
		blobs:    blobs,
		families: newKeyedMutex(),
	}
}

func (s *registryService) SetEvictor(e Evictor) {
	s.evictorMu.Lock()
	defer s.evictorMu.Unlock()
	s.evictor = e
}

func (s *registryService) notifyEvict(id uuid.UUID) {
	s.evictorMu.RLock()
	defer s.evictorMu.RUnlock()
	if s.evictor != nil {
		s.evictor.Evict(id)
	}
}

func (s *registryService) Preview(data []byte, filename string) (*PreviewResult, error) {
	info, err := artifact.Inspect(data)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{
		Info:          info,
		SuggestedName: artifact.SuggestName(filename),
		FileSize:      int64(len(data)),
	}, nil
}

func (s *registryService) Register(ctx context.Context, in RegisterInput) (*types.ModelRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("model name is required")
	}

	info, err := artifact.Inspect(in.Data)
	if err != nil {
		return nil, err
	}

	unlock := s.families.Lock(name)
	defer unlock()

	versions, err := s.records.ListByName(ctx, nil, name)
	if err != nil {
		return nil, err
	}

	version := 1
	var parentID *uuid.UUID
	if len(versions) > 0 {
		prev := versions[len(versions)-1]
		version = prev.Version + 1
		parentID = &prev.ID
	}

	if in.ParentID != nil {
		parent, err := s.records.GetByID(ctx, nil, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, &modelerr.InvalidVersionRequestError{
				Reason: fmt.Sprintf("parent model %s not found", in.ParentID),
			}
		}
		if parent.Name != name {
			return nil, &modelerr.InvalidVersionRequestError{
				Reason: fmt.Sprintf("parent model %s belongs to family %q, not %q", parent.ID, parent.Name, name),
			}
		}
		parentID = in.ParentID
	}

	rec := &types.ModelRecord{
		ID:           uuid.New(),
		Name:         name,
		Description:  in.Description,
		Version:      version,
		ParentID:     parentID,
		IsLatest:     true,
		ModelKind:    info.Kind,
		FeatureNames: info.FeatureNames,
		NumFeatures:  info.NumFeatures,
		NumClasses:   info.NumClasses,
		Status:       types.ModelStatusUploaded,
		FileSize:     int64(len(in.Data)),
	}
	rec.StoragePath = storageKeyFor(rec.ID, in.Filename)

	if err := s.blobs.Put(ctx, rec.StoragePath, in.Data); err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.records.ClearLatest(ctx, tx, name); err != nil {
			return err
		}
		return s.records.Create(ctx, tx, rec)
	})
	if err != nil {
		// The artifact was written before the metadata commit; clean it up so
		// a failed registration leaves nothing behind.
		if delErr := s.blobs.Delete(ctx, rec.StoragePath); delErr != nil {
			s.log.Warn("failed to clean up artifact after aborted registration", "error", delErr, "key", rec.StoragePath)
		}
		return nil, err
	}

	s.log.Info("registered model version",
		"model_id", rec.ID,
		"name", rec.Name,
		"version", rec.Version,
		"model_kind", rec.ModelKind,
	)
	return rec, nil
}

func (s *registryService) Get(ctx context.Context, id uuid.UUID) (*types.ModelRecord, error) {
	rec, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, modelerr.ErrNotFound
	}
	return rec, nil
}

func (s *registryService) List(ctx context.Context, latestOnly bool) ([]*types.ModelRecord, error) {
	return s.records.List(ctx, nil, latestOnly)
}

func (s *registryService) GetVersions(ctx context.Context, name string) ([]*types.ModelRecord, error) {
	return s.records.ListByName(ctx, nil, strings.TrimSpace(name))
}

// FindLatestByName resolves a family name to its latest version. Matching is
// forgiving for the chat surface: exact first, then case-insensitive, then
// substring in either direction.
func (s *registryService) FindLatestByName(ctx context.Context, name string) (*types.ModelRecord, error) {
	name = strings.TrimSpace(name)
	versions, err := s.records.ListByName(ctx, nil, name)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.IsLatest {
			return v, nil
		}
	}

	latest, err := s.records.List(ctx, nil, true)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	for _, rec := range latest {
		if strings.ToLower(rec.Name) == lower {
			return rec, nil
		}
	}
	for _, rec := range latest {
		recLower := strings.ToLower(rec.Name)
		if strings.Contains(recLower, lower) || strings.Contains(lower, recLower) {
			return rec, nil
		}
	}
	return nil, modelerr.ErrNotFound
}

func (s *registryService) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.families.Lock(rec.Name)
	defer unlock()

	// Re-read under the family lock; a concurrent delete may have won.
	rec, err = s.records.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return modelerr.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.records.Delete(ctx, tx, id); err != nil {
			return err
		}
		if !rec.IsLatest {
			return nil
		}
		remaining, err := s.records.ListByName(ctx, tx, rec.Name)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		next := remaining[len(remaining)-1]
		return s.records.SetLatest(ctx, tx, next.ID, true)
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, rec.StoragePath); err != nil {
		s.log.Warn("failed to delete artifact for removed model", "error", err, "model_id", id)
	}

	s.notifyEvict(id)
	s.log.Info("deleted model version", "model_id", id, "name", rec.Name, "version", rec.Version)
	return nil
}

func (s *registryService) MarkStatus(ctx context.Context, id uuid.UUID, status types.ModelStatus) error {
	switch status {
	case types.ModelStatusUploaded, types.ModelStatusDeployed, types.ModelStatusError:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	rec, err := s.records.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return modelerr.ErrNotFound
	}
	if rec.Status == status {
		return nil
	}
	return s.records.UpdateStatus(ctx, nil, id, status)
}

func (s *registryService) CountByStatus(ctx context.Context) (map[types.ModelStatus]int64, error) {
	return s.records.CountByStatus(ctx, nil)
}

func storageKeyFor(id uuid.UUID, filename string) string {
	ext := ".txt"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = filename[i:]
	}
	return id.String() + ext
}
