package tools

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/darshan-hindocha/plexe-technical/internal/artifact"
	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/repos"
	"github.com/darshan-hindocha/plexe-technical/internal/services"
	"github.com/darshan-hindocha/plexe-technical/internal/storage"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

func testArtifact(featureNames ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("tree\n")
	buf.WriteString("version=v4\n")
	buf.WriteString("objective=binary sigmoid:1\n")
	if len(featureNames) > 0 {
		buf.WriteString("feature_names=")
		for i, name := range featureNames {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(name)
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("max_feature_idx=" + strconv.Itoa(len(featureNames)-1) + "\n")
	buf.WriteString("\nTree=0\n")
	return buf.Bytes()
}

type stubModel struct{}

func (stubModel) Kind() types.ModelKind { return types.ModelKindClassifier }
func (stubModel) NumFeatures() int      { return 2 }
func (stubModel) Predict(row []float64) (artifact.Output, error) {
	p := 0.9
	return artifact.Output{Value: 1, Probability: &p}, nil
}

func newTestExecutor(t *testing.T) (*Executor, services.RegistryService) {
	t.Helper()
	log := logger.NewNop()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "registry.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(&types.ModelRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	blobs, err := storage.NewLocalStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	registry := services.NewRegistryService(gdb, log, repos.NewModelRecordRepo(gdb, log), blobs)
	loader := func(ctx context.Context, rec *types.ModelRecord) (artifact.Model, error) {
		return stubModel{}, nil
	}
	predictor := services.NewPredictorService(log, registry, blobs, loader)
	return NewExecutor(log, registry, predictor), registry
}

func register(t *testing.T, registry services.RegistryService, name string) *types.ModelRecord {
	t.Helper()
	rec, err := registry.Register(context.Background(), services.RegisterInput{
		Name:     name,
		Filename: name + ".txt",
		Data:     testArtifact("a", "b"),
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return rec
}

func TestExecuteUnknownTool(t *testing.T) {
	exec, _ := newTestExecutor(t)
	if _, err := exec.Execute(context.Background(), "launch_rockets", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestExecuteMissingArgs(t *testing.T) {
	exec, _ := newTestExecutor(t)
	_, err := exec.Execute(context.Background(), "make_prediction", map[string]any{})
	var argErr *ArgError
	if !errors.As(err, &argErr) {
		t.Fatalf("err=%v, want ArgError", err)
	}
	if len(argErr.Missing) != 2 {
		t.Fatalf("missing=%v", argErr.Missing)
	}
}

func TestListModelsWithFilter(t *testing.T) {
	exec, registry := newTestExecutor(t)
	ctx := context.Background()
	register(t, registry, "churn")
	register(t, registry, "pricing")

	res, err := exec.Execute(ctx, "list_models", map[string]any{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Data["total"] != 2 {
		t.Fatalf("total=%v", res.Data["total"])
	}

	res, err = exec.Execute(ctx, "list_models", map[string]any{"status_filter": "deployed"})
	if err != nil {
		t.Fatalf("list deployed: %v", err)
	}
	if res.Data["total"] != 0 {
		t.Fatalf("deployed total=%v", res.Data["total"])
	}
}

func TestGetModelInfoAndVersions(t *testing.T) {
	exec, registry := newTestExecutor(t)
	ctx := context.Background()
	v1 := register(t, registry, "churn")
	register(t, registry, "churn")

	res, err := exec.Execute(ctx, "get_model_info", map[string]any{"model_id": v1.ID.String()})
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if res.Data["family_versions"] != 2 {
		t.Fatalf("family_versions=%v", res.Data["family_versions"])
	}

	res, err = exec.Execute(ctx, "get_model_versions", map[string]any{"model_name": "churn"})
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if res.Data["total"] != 2 {
		t.Fatalf("total=%v", res.Data["total"])
	}
}

func TestFindModelByNamePartial(t *testing.T) {
	exec, registry := newTestExecutor(t)
	register(t, registry, "churn-predictor")

	res, err := exec.Execute(context.Background(), "find_model_by_name", map[string]any{"model_name": "CHURN"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	rec := res.Data["model"].(*types.ModelRecord)
	if rec.Name != "churn-predictor" {
		t.Fatalf("name=%s", rec.Name)
	}
}

func TestPredictionTools(t *testing.T) {
	exec, registry := newTestExecutor(t)
	ctx := context.Background()
	rec := register(t, registry, "churn")

	// Feature maps arrive as decoded JSON (map[string]any).
	res, err := exec.Execute(ctx, "make_prediction", map[string]any{
		"model_id": rec.ID.String(),
		"features": map[string]any{"a": 1.0, "b": 2.0},
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if res.Data["prediction"] != 1.0 {
		t.Fatalf("prediction=%v", res.Data["prediction"])
	}

	res, err = exec.Execute(ctx, "predict_with_model_name", map[string]any{
		"model_name": "churn",
		"features":   map[string]float64{"a": 1, "b": 2},
	})
	if err != nil {
		t.Fatalf("predict by name: %v", err)
	}
	if res.Data["model_name"] != "churn" {
		t.Fatalf("model_name=%v", res.Data["model_name"])
	}

	res, err = exec.Execute(ctx, "make_batch_prediction", map[string]any{
		"model_id": rec.ID.String(),
		"features_list": []any{
			map[string]any{"a": 1.0, "b": 2.0},
			map[string]any{"a": 1.0}, // missing b
		},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if res.Data["failed"] != 1 {
		t.Fatalf("failed=%v", res.Data["failed"])
	}
}

func TestValidateFeaturesTool(t *testing.T) {
	exec, registry := newTestExecutor(t)
	rec := register(t, registry, "churn")

	res, err := exec.Execute(context.Background(), "validate_features", map[string]any{
		"model_id": rec.ID.String(),
		"features": map[string]any{"a": 1.0},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Data["valid"] != false {
		t.Fatalf("valid=%v", res.Data["valid"])
	}
}

func TestDeleteModelToolPassesThroughNotFound(t *testing.T) {
	exec, registry := newTestExecutor(t)
	rec := register(t, registry, "churn")

	if _, err := exec.Execute(context.Background(), "delete_model", map[string]any{"model_id": rec.ID.String()}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := exec.Execute(context.Background(), "delete_model", map[string]any{"model_id": rec.ID.String()})
	if !errors.Is(err, modelerr.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestSystemStatusCountsDeployed(t *testing.T) {
	exec, registry := newTestExecutor(t)
	ctx := context.Background()
	rec := register(t, registry, "churn")
	register(t, registry, "pricing")

	// First prediction flips the model to deployed.
	if _, err := exec.Execute(ctx, "make_prediction", map[string]any{
		"model_id": rec.ID.String(),
		"features": map[string]any{"a": 1.0, "b": 2.0},
	}); err != nil {
		t.Fatalf("predict: %v", err)
	}

	res, err := exec.Execute(ctx, "get_system_status", nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Data["total_models"] != int64(2) {
		t.Fatalf("total=%v", res.Data["total_models"])
	}
	if res.Data["deployed_models"] != int64(1) {
		t.Fatalf("deployed=%v", res.Data["deployed_models"])
	}
}
