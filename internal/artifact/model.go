package artifact

import (
	"bufio"
	"bytes"
	"fmt"
	"math"

	"github.com/dmitryikh/leaves"

	"github.com/darshan-hindocha/plexe-technical/internal/types"
)

// Output is a single inference result. Probability is set for classifiers
// only and always refers to the predicted class.
type Output struct {
	Value       float64
	Probability *float64
}

// Model is a deserialized, inference-ready artifact. Predict is safe for
// concurrent use; the ensemble is never mutated after loading.
type Model interface {
	Kind() types.ModelKind
	NumFeatures() int
	Predict(row []float64) (Output, error)
}

type ensembleModel struct {
	ensemble *leaves.Ensemble
	info     *Info
}

// Load deserializes a LightGBM text artifact into an inference-ready model.
// Raw scores are requested from leaves and the link function (sigmoid or
// softmax) is applied here, so classifier outputs are probabilities for every
// objective, including multiclass.
func Load(data []byte) (Model, error) {
	info, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	ensemble, err := leaves.LGEnsembleFromReader(bufio.NewReader(bytes.NewReader(data)), false)
	if err != nil {
		return nil, fmt.Errorf("deserialize ensemble: %w", err)
	}

	return &ensembleModel{ensemble: ensemble, info: info}, nil
}

func (m *ensembleModel) Kind() types.ModelKind { return m.info.Kind }

func (m *ensembleModel) NumFeatures() int { return m.ensemble.NFeatures() }

func (m *ensembleModel) Predict(row []float64) (Output, error) {
	if len(row) != m.ensemble.NFeatures() {
		return Output{}, fmt.Errorf("expected %d features, got %d", m.ensemble.NFeatures(), len(row))
	}

	raw := make([]float64, m.ensemble.NOutputGroups())
	if err := m.ensemble.Predict(row, 0, raw); err != nil {
		return Output{}, err
	}

	if m.info.Kind == types.ModelKindRegressor {
		return Output{Value: raw[0]}, nil
	}

	if len(raw) == 1 {
		// Binary objective: one raw score, sigmoid link.
		p := sigmoid(raw[0])
		label, prob := 1.0, p
		if p < 0.5 {
			label, prob = 0.0, 1-p
		}
		return Output{Value: label, Probability: &prob}, nil
	}

	probs := softmax(raw)
	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return Output{Value: float64(best), Probability: &probs[best]}, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func softmax(raw []float64) []float64 {
	max := raw[0]
	for _, v := range raw[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
