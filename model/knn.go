package model

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/nanosim/config"
)

// Params configures the regressor.
type Params struct {
	K       int    // neighbours consulted per prediction
	Weights string // config.WeightsUniform or config.WeightsDistance
}

// DefaultParams matches the stock configuration: 3 neighbours, uniform weights.
func DefaultParams() Params {
	return Params{K: 3, Weights: config.WeightsUniform}
}

// ParamsFromConfig reads regressor parameters from the model section.
func ParamsFromConfig(mc config.ModelConfig) Params {
	return Params{K: mc.Neighbors, Weights: mc.Weights}
}

// KNNRegressor predicts the mean target of the k training rows closest
// (euclidean) to the query. Safe for concurrent Predict calls.
type KNNRegressor struct {
	x      *mat.Dense
	y      []float64
	params Params
}

// Fit validates the dataset and stores it as the model.
func Fit(d Dataset, p Params) (*KNNRegressor, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if p.K < 1 || p.K > d.Rows() {
		return nil, fmt.Errorf("%w: k=%d with %d rows", ErrNeighbors, p.K, d.Rows())
	}
	switch p.Weights {
	case "":
		p.Weights = config.WeightsUniform
	case config.WeightsUniform, config.WeightsDistance:
	default:
		return nil, fmt.Errorf("model: unknown weight scheme %q", p.Weights)
	}

	x := mat.NewDense(d.Rows(), NumFeatures, nil)
	for i, row := range d.Features {
		x.SetRow(i, row)
	}
	y := make([]float64, len(d.Targets))
	copy(y, d.Targets)

	return &KNNRegressor{x: x, y: y, params: p}, nil
}

// K returns the neighbour count.
func (m *KNNRegressor) K() int {
	return m.params.K
}

type neighbour struct {
	dist   float64
	target float64
}

// Predict returns the regression value for one feature vector.
func (m *KNNRegressor) Predict(features []float64) (float64, error) {
	if len(features) != NumFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), NumFeatures)
	}

	rows, _ := m.x.Dims()
	nbrs := make([]neighbour, rows)
	for i := 0; i < rows; i++ {
		nbrs[i] = neighbour{
			dist:   floats.Distance(m.x.RawRowView(i), features, 2),
			target: m.y[i],
		}
	}
	sort.SliceStable(nbrs, func(i, j int) bool { return nbrs[i].dist < nbrs[j].dist })
	nbrs = nbrs[:m.params.K]

	targets := make([]float64, len(nbrs))
	for i, n := range nbrs {
		targets[i] = n.target
	}
	if m.params.Weights == config.WeightsUniform {
		return stat.Mean(targets, nil), nil
	}

	// Inverse-distance weights; exact matches take all the weight.
	weights := make([]float64, len(nbrs))
	exact := false
	for i, n := range nbrs {
		if n.dist == 0 {
			exact = true
			weights[i] = 1
		}
	}
	if !exact {
		for i, n := range nbrs {
			weights[i] = 1 / n.dist
		}
	}
	return stat.Mean(targets, weights), nil
}

// PredictBatch predicts every row of x.
func (m *KNNRegressor) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
