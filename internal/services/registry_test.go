package services

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/repos"
	"github.com/darshan-hindocha/plexe-technical/internal/storage"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

func classifierArtifact(featureNames ...string) []byte {
	lines := []string{
		"tree",
		"version=v3",
		"num_class=1",
		"objective=binary sigmoid:1",
	}
	if len(featureNames) > 0 {
		lines = append(lines,
			"max_feature_idx="+strconv.Itoa(len(featureNames)-1),
			"feature_names="+strings.Join(featureNames, " "),
		)
	}
	lines = append(lines, "", "Tree=0")
	return []byte(strings.Join(lines, "\n"))
}

func regressorArtifact(featureNames ...string) []byte {
	lines := []string{
		"tree",
		"version=v3",
		"num_class=1",
		"objective=regression",
	}
	if len(featureNames) > 0 {
		lines = append(lines,
			"max_feature_idx="+strconv.Itoa(len(featureNames)-1),
			"feature_names="+strings.Join(featureNames, " "),
		)
	}
	lines = append(lines, "", "Tree=0")
	return []byte(strings.Join(lines, "\n"))
}

func newTestRegistry(t *testing.T) RegistryService {
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

	return NewRegistryService(gdb, log, repos.NewModelRecordRepo(gdb, log), blobs)
}

func mustRegister(t *testing.T, reg RegistryService, name string, data []byte) *types.ModelRecord {
	t.Helper()
	rec, err := reg.Register(context.Background(), RegisterInput{
		Name:     name,
		Filename: name + ".txt",
		Data:     data,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return rec
}

func assertSingleLatest(t *testing.T, reg RegistryService, name string) *types.ModelRecord {
	t.Helper()
	versions, err := reg.GetVersions(context.Background(), name)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	var latest *types.ModelRecord
	maxVersion := 0
	for _, v := range versions {
		if v.Version > maxVersion {
			maxVersion = v.Version
		}
		if v.IsLatest {
			if latest != nil {
				t.Fatalf("family %s has two latest versions (%d and %d)", name, latest.Version, v.Version)
			}
			latest = v
		}
	}
	if latest == nil {
		t.Fatalf("family %s has no latest version", name)
	}
	if latest.Version != maxVersion {
		t.Fatalf("latest is v%d, max version is v%d", latest.Version, maxVersion)
	}
	return latest
}

func TestRegisterNewFamily(t *testing.T) {
	reg := newTestRegistry(t)

	rec := mustRegister(t, reg, "churn", classifierArtifact("age", "income", "tenure"))

	if rec.Version != 1 {
		t.Fatalf("version=%d, want 1", rec.Version)
	}
	if !rec.IsLatest {
		t.Fatal("new record is not latest")
	}
	if rec.Status != types.ModelStatusUploaded {
		t.Fatalf("status=%s, want uploaded", rec.Status)
	}
	if rec.ModelKind != types.ModelKindClassifier {
		t.Fatalf("kind=%s", rec.ModelKind)
	}
	if rec.ParentID != nil {
		t.Fatalf("parent_id=%v, want nil", rec.ParentID)
	}
	if len(rec.FeatureNames) != 3 || rec.FeatureNames[0] != "age" {
		t.Fatalf("feature_names=%v", rec.FeatureNames)
	}
}

func TestRegisterVersionSequence(t *testing.T) {
	reg := newTestRegistry(t)

	var prev *types.ModelRecord
	for i := 1; i <= 4; i++ {
		rec := mustRegister(t, reg, "churn", classifierArtifact("a", "b"))
		if rec.Version != i {
			t.Fatalf("register %d: version=%d", i, rec.Version)
		}
		latest := assertSingleLatest(t, reg, "churn")
		if latest.ID != rec.ID {
			t.Fatalf("register %d: latest is %s, want %s", i, latest.ID, rec.ID)
		}
		if i > 1 && (rec.ParentID == nil || *rec.ParentID != prev.ID) {
			t.Fatalf("register %d: parent_id=%v, want %s", i, rec.ParentID, prev.ID)
		}
		prev = rec
	}
}

func TestRegisterExplicitParent(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	v1 := mustRegister(t, reg, "churn", classifierArtifact("a"))
	rec, err := reg.Register(ctx, RegisterInput{
		Name:     "churn",
		Filename: "churn.txt",
		Data:     classifierArtifact("a"),
		ParentID: &v1.ID,
	})
	if err != nil {
		t.Fatalf("register v2: %v", err)
	}
	if rec.Version != 2 || rec.ParentID == nil || *rec.ParentID != v1.ID {
		t.Fatalf("v2: version=%d parent=%v", rec.Version, rec.ParentID)
	}
}

func TestRegisterInvalidParent(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, reg, "churn", classifierArtifact("a"))
	other := mustRegister(t, reg, "pricing", regressorArtifact("sqft"))

	unknown := uuid.New()
	var badVer *modelerr.InvalidVersionRequestError

	_, err := reg.Register(ctx, RegisterInput{
		Name: "churn", Filename: "churn.txt", Data: classifierArtifact("a"),
		ParentID: &unknown,
	})
	if !errors.As(err, &badVer) {
		t.Fatalf("unknown parent: err=%v", err)
	}

	_, err = reg.Register(ctx, RegisterInput{
		Name: "churn", Filename: "churn.txt", Data: classifierArtifact("a"),
		ParentID: &other.ID,
	})
	if !errors.As(err, &badVer) {
		t.Fatalf("cross-family parent: err=%v", err)
	}
}

func TestRegisterBadArtifacts(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, RegisterInput{Name: "m", Filename: "m.txt", Data: []byte("junk")})
	if !errors.Is(err, modelerr.ErrCorruptArtifact) {
		t.Fatalf("corrupt: err=%v", err)
	}

	ranker := []byte("tree\nversion=v3\nobjective=lambdarank\n\nTree=0")
	_, err = reg.Register(ctx, RegisterInput{Name: "m", Filename: "m.txt", Data: ranker})
	if !errors.Is(err, modelerr.ErrUnsupportedModelKind) {
		t.Fatalf("unsupported: err=%v", err)
	}

	// Nothing should have been persisted.
	all, err := reg.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("records after failed registers: %d", len(all))
	}
}

func TestPreviewRegisterRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	data := classifierArtifact("age", "income")

	prev, err := reg.Preview(data, "churn_model.txt")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if prev.SuggestedName != "churn_model" {
		t.Fatalf("suggested_name=%q", prev.SuggestedName)
	}

	rec := mustRegister(t, reg, prev.SuggestedName, data)
	if rec.ModelKind != prev.Info.Kind {
		t.Fatalf("kind mismatch: %s vs %s", rec.ModelKind, prev.Info.Kind)
	}
	if len(rec.FeatureNames) != len(prev.Info.FeatureNames) {
		t.Fatalf("feature mismatch: %v vs %v", rec.FeatureNames, prev.Info.FeatureNames)
	}
	for i := range prev.Info.FeatureNames {
		if rec.FeatureNames[i] != prev.Info.FeatureNames[i] {
			t.Fatalf("feature mismatch at %d", i)
		}
	}
}

func TestDeletePromotesNextHighest(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	v1 := mustRegister(t, reg, "churn", classifierArtifact("a"))
	v2 := mustRegister(t, reg, "churn", classifierArtifact("a"))
	v3 := mustRegister(t, reg, "churn", classifierArtifact("a"))

	if err := reg.Delete(ctx, v3.ID); err != nil {
		t.Fatalf("delete v3: %v", err)
	}
	latest := assertSingleLatest(t, reg, "churn")
	if latest.ID != v2.ID {
		t.Fatalf("latest=%s, want v2", latest.ID)
	}

	// Deleting a non-latest version leaves the latest flag alone.
	if err := reg.Delete(ctx, v1.ID); err != nil {
		t.Fatalf("delete v1: %v", err)
	}
	latest = assertSingleLatest(t, reg, "churn")
	if latest.ID != v2.ID {
		t.Fatalf("latest=%s after v1 delete, want v2", latest.ID)
	}

	// Deleting the only remaining version removes the family.
	if err := reg.Delete(ctx, v2.ID); err != nil {
		t.Fatalf("delete v2: %v", err)
	}
	versions, err := reg.GetVersions(ctx, "churn")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("family still has %d versions", len(versions))
	}

	if err := reg.Delete(ctx, v2.ID); !errors.Is(err, modelerr.ErrNotFound) {
		t.Fatalf("double delete: err=%v", err)
	}
}

type recordingEvictor struct {
	evicted []uuid.UUID
}

func (r *recordingEvictor) Evict(id uuid.UUID) { r.evicted = append(r.evicted, id) }

func TestDeleteNotifiesEvictor(t *testing.T) {
	reg := newTestRegistry(t)
	ev := &recordingEvictor{}
	reg.SetEvictor(ev)

	rec := mustRegister(t, reg, "churn", classifierArtifact("a"))
	if err := reg.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ev.evicted) != 1 || ev.evicted[0] != rec.ID {
		t.Fatalf("evicted=%v", ev.evicted)
	}
}

func TestMarkStatus(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	rec := mustRegister(t, reg, "churn", classifierArtifact("a"))

	if err := reg.MarkStatus(ctx, rec.ID, types.ModelStatusDeployed); err != nil {
		t.Fatalf("mark deployed: %v", err)
	}
	// Idempotent.
	if err := reg.MarkStatus(ctx, rec.ID, types.ModelStatusDeployed); err != nil {
		t.Fatalf("mark deployed again: %v", err)
	}
	got, err := reg.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.ModelStatusDeployed {
		t.Fatalf("status=%s", got.Status)
	}

	if err := reg.MarkStatus(ctx, uuid.New(), types.ModelStatusError); !errors.Is(err, modelerr.ErrNotFound) {
		t.Fatalf("unknown id: err=%v", err)
	}
	if err := reg.MarkStatus(ctx, rec.ID, types.ModelStatus("bogus")); err == nil {
		t.Fatal("bogus status accepted")
	}
}

func TestFindLatestByName(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, reg, "churn_model", classifierArtifact("a"))
	v2 := mustRegister(t, reg, "churn_model", classifierArtifact("a"))

	for _, query := range []string{"churn_model", "Churn_Model", "churn"} {
		rec, err := reg.FindLatestByName(ctx, query)
		if err != nil {
			t.Fatalf("find %q: %v", query, err)
		}
		if rec.ID != v2.ID {
			t.Fatalf("find %q: got %s, want latest", query, rec.ID)
		}
	}

	if _, err := reg.FindLatestByName(ctx, "nothing"); !errors.Is(err, modelerr.ErrNotFound) {
		t.Fatalf("missing name: err=%v", err)
	}
}

func TestListLatestOnly(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, reg, "churn", classifierArtifact("a"))
	mustRegister(t, reg, "churn", classifierArtifact("a"))
	mustRegister(t, reg, "pricing", regressorArtifact("sqft"))

	all, err := reg.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all=%d", len(all))
	}

	latest, err := reg.List(ctx, true)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest=%d", len(latest))
	}
	for _, rec := range latest {
		if !rec.IsLatest {
			t.Fatalf("non-latest record in latest listing: %s", rec.ID)
		}
	}
}
