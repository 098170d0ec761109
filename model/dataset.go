// Package model fits a k-nearest-neighbour regressor to a small numeric dataset.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/nanosim/config"
)

// NumFeatures is the fixed number of columns per sample.
const NumFeatures = 3

var (
	ErrEmptyDataset  = errors.New("model: dataset has no rows")
	ErrShapeMismatch = errors.New("model: feature rows and targets differ in length")
	ErrFeatureCount  = errors.New("model: wrong number of features")
	ErrNeighbors     = errors.New("model: invalid neighbour count")
	ErrMalformedData = errors.New("model: malformed training data")
)

// Dataset is a feature matrix (rows = samples) and one target per row.
type Dataset struct {
	Features [][]float64
	Targets  []float64
}

// Rows returns the number of samples.
func (d Dataset) Rows() int {
	return len(d.Features)
}

// Validate checks the dataset shape.
func (d Dataset) Validate() error {
	if len(d.Features) == 0 {
		return ErrEmptyDataset
	}
	if len(d.Features) != len(d.Targets) {
		return fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(d.Features), len(d.Targets))
	}
	for i, row := range d.Features {
		if len(row) != NumFeatures {
			return fmt.Errorf("%w: row %d has %d, want %d", ErrFeatureCount, i, len(row), NumFeatures)
		}
	}
	return nil
}

// DatasetFromConfig returns the inline training set from the config.
func DatasetFromConfig(tc config.TrainingConfig) Dataset {
	return Dataset{Features: tc.Features, Targets: tc.Targets}
}

// Sample is one CSV row of a training file.
type Sample struct {
	X1     float64 `csv:"x1"`
	X2     float64 `csv:"x2"`
	X3     float64 `csv:"x3"`
	Target float64 `csv:"target"`
}

// csvColumns are the header names a training file must carry.
var csvColumns = []string{"x1", "x2", "x3", "target"}

// LoadDatasetCSV reads a training file with columns x1,x2,x3,target.
// Column order is free; a missing or repeated column is an error.
func LoadDatasetCSV(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("opening training data: %w", err)
	}

	header, err := gocsv.DefaultCSVReader(bytes.NewReader(data)).Read()
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: reading header: %v", ErrMalformedData, err)
	}
	if err := checkHeader(header); err != nil {
		return Dataset{}, err
	}

	var samples []Sample
	if err := gocsv.UnmarshalBytes(data, &samples); err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}

	d := Dataset{
		Features: make([][]float64, len(samples)),
		Targets:  make([]float64, len(samples)),
	}
	for i, s := range samples {
		d.Features[i] = []float64{s.X1, s.X2, s.X3}
		d.Targets[i] = s.Target
	}
	return d, nil
}

// checkHeader requires every training column exactly once.
func checkHeader(header []string) error {
	seen := make(map[string]int, len(header))
	for _, h := range header {
		seen[h]++
	}
	var missing []string
	for _, col := range csvColumns {
		switch seen[col] {
		case 0:
			missing = append(missing, col)
		case 1:
		default:
			return fmt.Errorf("%w: column %q repeated", ErrMalformedData, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: header %v is missing %v", ErrMalformedData, header, missing)
	}
	return nil
}
