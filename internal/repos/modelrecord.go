package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// ModelRecordRepo is the persistence surface for model version metadata.
// Every method accepts an optional transaction; nil falls back to the repo's
// own connection.
type ModelRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rec *types.ModelRecord) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ModelRecord, error)
	List(ctx context.Context, tx *gorm.DB, latestOnly bool) ([]*types.ModelRecord, error)
	ListByName(ctx context.Context, tx *gorm.DB, name string) ([]*types.ModelRecord, error)
	ClearLatest(ctx context.Context, tx *gorm.DB, name string) error
	SetLatest(ctx context.Context, tx *gorm.DB, id uuid.UUID, latest bool) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.ModelStatus) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.ModelStatus]int64, error)
}

type modelRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModelRecordRepo(db *gorm.DB, baseLog *logger.Logger) ModelRecordRepo {
	return &modelRecordRepo{db: db, log: baseLog.With("repo", "ModelRecordRepo")}
}

func (r *modelRecordRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *modelRecordRepo) Create(ctx context.Context, tx *gorm.DB, rec *types.ModelRecord) error {
	return r.conn(tx).WithContext(ctx).Create(rec).Error
}

// GetByID returns (nil, nil) when the id is unknown; callers translate that
// into the domain's not-found error.
func (r *modelRecordRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ModelRecord, error) {
	var rec types.ModelRecord
	err := r.conn(tx).WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *modelRecordRepo) List(ctx context.Context, tx *gorm.DB, latestOnly bool) ([]*types.ModelRecord, error) {
	q := r.conn(tx).WithContext(ctx).Order("created_at asc, version asc")
	if latestOnly {
		q = q.Where("is_latest = ?", true)
	}
	var recs []*types.ModelRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *modelRecordRepo) ListByName(ctx context.Context, tx *gorm.DB, name string) ([]*types.ModelRecord, error) {
	var recs []*types.ModelRecord
	err := r.conn(tx).WithContext(ctx).
		Where("name = ?", name).
		Order("version asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *modelRecordRepo) ClearLatest(ctx context.Context, tx *gorm.DB, name string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.ModelRecord{}).
		Where("name = ? AND is_latest = ?", name, true).
		Updates(map[string]interface{}{"is_latest": false}).Error
}

func (r *modelRecordRepo) SetLatest(ctx context.Context, tx *gorm.DB, id uuid.UUID, latest bool) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.ModelRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_latest": latest}).Error
}

func (r *modelRecordRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.ModelStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.ModelRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status}).Error
}

func (r *modelRecordRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).Delete(&types.ModelRecord{}, "id = ?", id).Error
}

func (r *modelRecordRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[types.ModelStatus]int64, error) {
	var rows []struct {
		Status types.ModelStatus
		Total  int64
	}
	err := r.conn(tx).WithContext(ctx).
		Model(&types.ModelRecord{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[types.ModelStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
