package artifact

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/darshan-hindocha/plexe-technical/internal/modelerr"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// Info is the metadata introspected from a serialized model without building
// an inference-ready object.
type Info struct {
	Kind         types.ModelKind
	Objective    string
	FeatureNames []string
	NumFeatures  int
	NumClasses   int
}

var classifierObjectives = map[string]bool{
	"binary":        true,
	"multiclass":    true,
	"multiclassova": true,
	"cross_entropy": true,
}

var regressorObjectives = map[string]bool{
	"regression":    true,
	"regression_l1": true,
	"regression_l2": true,
	"l1":            true,
	"l2":            true,
	"mean_squared_error": true,
	"huber":    true,
	"fair":     true,
	"poisson":  true,
	"quantile": true,
	"mape":     true,
	"gamma":    true,
	"tweedie":  true,
}

// Inspect parses the header of a LightGBM text-format artifact and reports
// the model kind and declared feature schema. It reads no tree data, so it is
// cheap enough to run on every upload and preview.
func Inspect(data []byte) (*Info, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64<<10), 1<<20)

	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "tree" {
		return nil, fmt.Errorf("%w: missing LightGBM header", modelerr.ErrCorruptArtifact)
	}

	header := map[string]string{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "Tree=") {
			break
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		header[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", modelerr.ErrCorruptArtifact, err)
	}

	objective, ok := header["objective"]
	if !ok {
		return nil, fmt.Errorf("%w: no objective declared", modelerr.ErrCorruptArtifact)
	}
	// The objective line may carry parameters ("binary sigmoid:1").
	fields := strings.Fields(objective)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty objective", modelerr.ErrCorruptArtifact)
	}
	objective = fields[0]

	info := &Info{Objective: objective}
	switch {
	case classifierObjectives[objective]:
		info.Kind = types.ModelKindClassifier
	case regressorObjectives[objective]:
		info.Kind = types.ModelKindRegressor
	default:
		return nil, fmt.Errorf("%w: objective %q", modelerr.ErrUnsupportedModelKind, objective)
	}

	if v, ok := header["max_feature_idx"]; ok {
		if idx, err := strconv.Atoi(v); err == nil {
			info.NumFeatures = idx + 1
		}
	}
	if names, ok := header["feature_names"]; ok {
		fields := strings.Fields(names)
		if len(fields) > 0 {
			info.FeatureNames = fields
		}
	}
	if info.Kind == types.ModelKindClassifier {
		info.NumClasses = 2
		if v, ok := header["num_class"]; ok {
			if n, err := strconv.Atoi(v); err == nil && n > 1 {
				info.NumClasses = n
			}
		}
	}

	return info, nil
}

// SuggestName derives a family-name suggestion from an uploaded filename, the
// stem without extension. Falls back to "model".
func SuggestName(filename string) string {
	base := strings.TrimSpace(filename)
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return "model"
	}
	return base
}
