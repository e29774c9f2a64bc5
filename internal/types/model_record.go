package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ModelKind string

const (
	ModelKindClassifier ModelKind = "classifier"
	ModelKindRegressor  ModelKind = "regressor"
)

type ModelStatus string

const (
	ModelStatusUploaded ModelStatus = "uploaded"
	ModelStatusDeployed ModelStatus = "deployed"
	ModelStatusError    ModelStatus = "error"
)

// ModelRecord is one version of one model family. Metadata is immutable after
// creation except for Status, IsLatest and UpdatedAt.
type ModelRecord struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;not null;index" json:"name"`
	Description string     `gorm:"column:description" json:"description,omitempty"`
	Version     int        `gorm:"column:version;not null" json:"version"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid" json:"parent_id,omitempty"`
	IsLatest    bool       `gorm:"column:is_latest;not null" json:"is_latest"`

	ModelKind    ModelKind                   `gorm:"column:model_kind;not null" json:"model_kind"`
	FeatureNames datatypes.JSONSlice[string] `gorm:"column:feature_names" json:"feature_names,omitempty"`
	NumFeatures  int                         `gorm:"column:num_features" json:"num_features"`
	NumClasses   int                         `gorm:"column:num_classes" json:"num_classes,omitempty"`

	Status      ModelStatus `gorm:"column:status;not null;default:'uploaded'" json:"status"`
	StoragePath string      `gorm:"column:storage_path;not null" json:"storage_path"`
	FileSize    int64       `gorm:"column:file_size" json:"file_size"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ModelRecord) TableName() string { return "model_record" }
