package tools

// Spec describes one tool a chat agent may call. Requires lists argument
// names that must be present; Optional ones default when absent.
type Spec struct {
	Name        string
	Description string
	Requires    []string
	Optional    []string
}

var Registry = map[string]Spec{
	"list_models": {
		Name:        "list_models",
		Description: "List registered models, optionally filtered by status or restricted to latest versions.",
		Optional:    []string{"status_filter", "latest_only"},
	},
	"get_model_info": {
		Name:        "get_model_info",
		Description: "Get full metadata for one model version by id, including its family and version chain.",
		Requires:    []string{"model_id"},
	},
	"find_model_by_name": {
		Name:        "find_model_by_name",
		Description: "Resolve a model family name (exact, case-insensitive or partial) to its latest version.",
		Requires:    []string{"model_name"},
	},
	"get_model_versions": {
		Name:        "get_model_versions",
		Description: "List every version of a model family, oldest first.",
		Requires:    []string{"model_name"},
	},
	"delete_model": {
		Name:        "delete_model",
		Description: "Delete a model version by id. If it was the latest, the next highest version is promoted.",
		Requires:    []string{"model_id"},
	},
	"make_prediction": {
		Name:        "make_prediction",
		Description: "Run a single prediction against a model by id with a feature map.",
		Requires:    []string{"model_id", "features"},
	},
	"predict_with_model_name": {
		Name:        "predict_with_model_name",
		Description: "Run a single prediction against the latest version of a model family by name.",
		Requires:    []string{"model_name", "features"},
	},
	"make_batch_prediction": {
		Name:        "make_batch_prediction",
		Description: "Run predictions for a list of feature maps against one model. Items fail independently.",
		Requires:    []string{"model_id", "features_list"},
	},
	"validate_features": {
		Name:        "validate_features",
		Description: "Check a feature map against a model's declared schema without running inference.",
		Requires:    []string{"model_id", "features"},
	},
	"get_system_status": {
		Name:        "get_system_status",
		Description: "Report how many models are registered and deployed.",
	},
}
