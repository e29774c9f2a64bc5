package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/services"
	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// Result is what a tool call hands back to the agent: a short human-readable
// message plus structured data it can reason over.
type Result struct {
	Tool string         `json:"tool_name"`
	Text string         `json:"message,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// ArgError reports a call that named a known tool but did not satisfy its
// argument contract.
type ArgError struct {
	Tool    string
	Missing []string
	Reason  string
}

func (e *ArgError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("tool %s requires: %s", e.Tool, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
}

type Executor struct {
	log       *logger.Logger
	registry  services.RegistryService
	predictor services.PredictorService
}

func NewExecutor(log *logger.Logger, registry services.RegistryService, predictor services.PredictorService) *Executor {
	return &Executor{
		log:       log.With("component", "ToolExecutor"),
		registry:  registry,
		predictor: predictor,
	}
}

// Execute runs one tool call. Unknown tool names and missing required
// arguments come back as errors the agent can surface; domain errors from the
// registry or predictor pass through unchanged.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	spec, ok := Registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported tool %q", name)
	}

	var missing []string
	for _, key := range spec.Requires {
		if _, ok := args[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &ArgError{Tool: spec.Name, Missing: missing}
	}

	e.log.Debug("executing tool", "tool", spec.Name)

	switch spec.Name {
	case "list_models":
		return e.listModels(ctx, args)
	case "get_model_info":
		return e.getModelInfo(ctx, args)
	case "find_model_by_name":
		return e.findModelByName(ctx, args)
	case "get_model_versions":
		return e.getModelVersions(ctx, args)
	case "delete_model":
		return e.deleteModel(ctx, args)
	case "make_prediction":
		return e.makePrediction(ctx, args)
	case "predict_with_model_name":
		return e.predictWithModelName(ctx, args)
	case "make_batch_prediction":
		return e.makeBatchPrediction(ctx, args)
	case "validate_features":
		return e.validateFeatures(ctx, args)
	case "get_system_status":
		return e.systemStatus(ctx)
	}
	return nil, fmt.Errorf("unsupported tool %q", name)
}

func (e *Executor) listModels(ctx context.Context, args map[string]any) (*Result, error) {
	latestOnly, err := argBool(args, "latest_only", "list_models")
	if err != nil {
		return nil, err
	}
	records, err := e.registry.List(ctx, latestOnly)
	if err != nil {
		return nil, err
	}
	if filter, ok := args["status_filter"]; ok {
		status, err := asString(filter, "status_filter", "list_models")
		if err != nil {
			return nil, err
		}
		filtered := records[:0]
		for _, rec := range records {
			if string(rec.Status) == status {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	return &Result{
		Tool: "list_models",
		Text: fmt.Sprintf("Found %d model(s).", len(records)),
		Data: map[string]any{"models": records, "total": len(records)},
	}, nil
}

func (e *Executor) getModelInfo(ctx context.Context, args map[string]any) (*Result, error) {
	id, err := argUUID(args, "model_id", "get_model_info")
	if err != nil {
		return nil, err
	}
	rec, err := e.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := e.registry.GetVersions(ctx, rec.Name)
	if err != nil {
		return nil, err
	}
	return &Result{
		Tool: "get_model_info",
		Text: fmt.Sprintf("%s v%d: %s %s, %d feature(s).", rec.Name, rec.Version, rec.Status, rec.ModelKind, rec.NumFeatures),
		Data: map[string]any{"model": rec, "family_versions": len(versions)},
	}, nil
}

func (e *Executor) findModelByName(ctx context.Context, args map[string]any) (*Result, error) {
	name, err := argString(args, "model_name", "find_model_by_name")
	if err != nil {
		return nil, err
	}
	rec, err := e.registry.FindLatestByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Result{
		Tool: "find_model_by_name",
		Text: fmt.Sprintf("Resolved %q to %s v%d (%s).", name, rec.Name, rec.Version, rec.ID),
		Data: map[string]any{"model": rec},
	}, nil
}

func (e *Executor) getModelVersions(ctx context.Context, args map[string]any) (*Result, error) {
	name, err := argString(args, "model_name", "get_model_versions")
	if err != nil {
		return nil, err
	}
	versions, err := e.registry.GetVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Result{
		Tool: "get_model_versions",
		Text: fmt.Sprintf("%q has %d version(s).", name, len(versions)),
		Data: map[string]any{"model_name": name, "versions": versions, "total": len(versions)},
	}, nil
}

func (e *Executor) deleteModel(ctx context.Context, args map[string]any) (*Result, error) {
	id, err := argUUID(args, "model_id", "delete_model")
	if err != nil {
		return nil, err
	}
	if err := e.registry.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &Result{
		Tool: "delete_model",
		Text: fmt.Sprintf("Deleted model %s.", id),
		Data: map[string]any{"model_id": id},
	}, nil
}

func (e *Executor) makePrediction(ctx context.Context, args map[string]any) (*Result, error) {
	id, err := argUUID(args, "model_id", "make_prediction")
	if err != nil {
		return nil, err
	}
	features, err := argFeatures(args, "features", "make_prediction")
	if err != nil {
		return nil, err
	}
	res, err := e.predictor.Predict(ctx, id, features)
	if err != nil {
		return nil, err
	}
	return predictionResult("make_prediction", res), nil
}

func (e *Executor) predictWithModelName(ctx context.Context, args map[string]any) (*Result, error) {
	name, err := argString(args, "model_name", "predict_with_model_name")
	if err != nil {
		return nil, err
	}
	features, err := argFeatures(args, "features", "predict_with_model_name")
	if err != nil {
		return nil, err
	}
	rec, err := e.registry.FindLatestByName(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := e.predictor.Predict(ctx, rec.ID, features)
	if err != nil {
		return nil, err
	}
	out := predictionResult("predict_with_model_name", res)
	out.Data["model_name"] = rec.Name
	out.Data["version"] = rec.Version
	return out, nil
}

func (e *Executor) makeBatchPrediction(ctx context.Context, args map[string]any) (*Result, error) {
	id, err := argUUID(args, "model_id", "make_batch_prediction")
	if err != nil {
		return nil, err
	}
	items, err := argFeaturesList(args, "features_list", "make_batch_prediction")
	if err != nil {
		return nil, err
	}
	slots, err := e.predictor.PredictBatch(ctx, id, items)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(slots))
	failed := 0
	for i, slot := range slots {
		if slot.Err != nil {
			failed++
			out[i] = map[string]any{"error": slot.Err.Error()}
			continue
		}
		out[i] = map[string]any{
			"prediction":  slot.Result.Prediction,
			"probability": slot.Result.Probability,
			"confidence":  slot.Result.Confidence,
		}
	}
	return &Result{
		Tool: "make_batch_prediction",
		Text: fmt.Sprintf("Ran %d prediction(s), %d failed.", len(slots), failed),
		Data: map[string]any{"predictions": out, "model_id": id, "failed": failed},
	}, nil
}

func (e *Executor) validateFeatures(ctx context.Context, args map[string]any) (*Result, error) {
	id, err := argUUID(args, "model_id", "validate_features")
	if err != nil {
		return nil, err
	}
	features, err := argFeatures(args, "features", "validate_features")
	if err != nil {
		return nil, err
	}
	res, err := e.predictor.ValidateFeatures(ctx, id, features)
	if err != nil {
		return nil, err
	}
	text := "Features are valid."
	if !res.Valid {
		text = fmt.Sprintf("Missing feature(s): %s.", strings.Join(res.Missing, ", "))
	}
	return &Result{
		Tool: "validate_features",
		Text: text,
		Data: map[string]any{
			"valid":            res.Valid,
			"missing_features": res.Missing,
			"extra_features":   res.Extra,
			"model_id":         id,
		},
	}, nil
}

func (e *Executor) systemStatus(ctx context.Context) (*Result, error) {
	counts, err := e.registry.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &Result{
		Tool: "get_system_status",
		Text: fmt.Sprintf("%d model(s) registered, %d deployed.", total, counts[types.ModelStatusDeployed]),
		Data: map[string]any{
			"total_models":    total,
			"uploaded_models": counts[types.ModelStatusUploaded],
			"deployed_models": counts[types.ModelStatusDeployed],
			"error_models":    counts[types.ModelStatusError],
		},
	}, nil
}

func predictionResult(tool string, res *services.PredictionResult) *Result {
	text := fmt.Sprintf("Prediction: %g.", res.Prediction)
	if res.Probability != nil && res.Confidence != nil {
		text = fmt.Sprintf("Prediction: %g (probability %.3f, %s confidence).", res.Prediction, *res.Probability, *res.Confidence)
	}
	return &Result{
		Tool: tool,
		Text: text,
		Data: map[string]any{
			"prediction":  res.Prediction,
			"probability": res.Probability,
			"confidence":  res.Confidence,
			"model_id":    res.ModelID,
		},
	}
}

func argString(args map[string]any, key, tool string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &ArgError{Tool: tool, Missing: []string{key}}
	}
	return asString(v, key, tool)
}

func asString(v any, key, tool string) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &ArgError{Tool: tool, Reason: fmt.Sprintf("%s must be a non-empty string", key)}
	}
	return strings.TrimSpace(s), nil
}

func argBool(args map[string]any, key, tool string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ArgError{Tool: tool, Reason: fmt.Sprintf("%s must be a boolean", key)}
	}
	return b, nil
}

func argUUID(args map[string]any, key, tool string) (uuid.UUID, error) {
	s, err := argString(args, key, tool)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &ArgError{Tool: tool, Reason: fmt.Sprintf("%s is not a valid id: %v", key, err)}
	}
	return id, nil
}

// argFeatures accepts both map[string]float64 (direct callers) and
// map[string]any with numeric values (decoded JSON).
func argFeatures(args map[string]any, key, tool string) (map[string]float64, error) {
	v, ok := args[key]
	if !ok {
		return nil, &ArgError{Tool: tool, Missing: []string{key}}
	}
	return asFeatures(v, key, tool)
}

func asFeatures(v any, key, tool string) (map[string]float64, error) {
	switch m := v.(type) {
	case map[string]float64:
		return m, nil
	case map[string]any:
		out := make(map[string]float64, len(m))
		for name, raw := range m {
			f, err := asFloat(raw)
			if err != nil {
				return nil, &ArgError{Tool: tool, Reason: fmt.Sprintf("%s[%s] must be numeric", key, name)}
			}
			out[name] = f
		}
		return out, nil
	default:
		return nil, &ArgError{Tool: tool, Reason: fmt.Sprintf("%s must be a feature map", key)}
	}
}

func argFeaturesList(args map[string]any, key, tool string) ([]map[string]float64, error) {
	v, ok := args[key]
	if !ok {
		return nil, &ArgError{Tool: tool, Missing: []string{key}}
	}
	switch list := v.(type) {
	case []map[string]float64:
		return list, nil
	case []any:
		out := make([]map[string]float64, len(list))
		for i, item := range list {
			features, err := asFeatures(item, key, tool)
			if err != nil {
				return nil, err
			}
			out[i] = features
		}
		return out, nil
	default:
		return nil, &ArgError{Tool: tool, Reason: fmt.Sprintf("%s must be a list of feature maps", key)}
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}
