package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/nanosim/config"
	"github.com/pthm-cable/nanosim/model"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the regression model and optionally predict",
		Long: `Fit the k-nearest-neighbour regressor to the configured dataset (or --data)
and print a prediction for each --predict vector.`,
		Example: `  nanosim train --predict 0.5,0.6,0.7
  nanosim train --data samples.csv --predict 1,1,1 --predict 0,0,0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dataPath, _ := cmd.Flags().GetString("data")
			m, err := trainModel(cfg, dataPath)
			if err != nil {
				return fmt.Errorf("training model: %w", err)
			}

			queries, _ := cmd.Flags().GetStringArray("predict")
			for _, q := range queries {
				features, err := parseFeatures(q)
				if err != nil {
					return err
				}
				v, err := m.Predict(features)
				if err != nil {
					return fmt.Errorf("predicting %q: %w", q, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %.6f\n", q, v)
			}
			return nil
		},
	}

	cmd.Flags().String("data", "", "Training data CSV with columns x1,x2,x3,target (empty = config dataset)")
	cmd.Flags().StringArray("predict", nil, "Comma-separated feature vector to predict (repeatable)")
	return cmd
}

// trainModel fits the regressor from dataPath, or from the config dataset when empty.
func trainModel(cfg *config.Config, dataPath string) (*model.KNNRegressor, error) {
	data := model.DatasetFromConfig(cfg.Model.Training)
	source := "config"
	if dataPath != "" {
		var err error
		if data, err = model.LoadDatasetCSV(dataPath); err != nil {
			return nil, err
		}
		source = dataPath
	}

	slog.Info("training model", "source", source, "rows", data.Rows(), "neighbors", cfg.Model.Neighbors)
	m, err := model.Fit(data, model.ParamsFromConfig(cfg.Model))
	if err != nil {
		return nil, err
	}
	slog.Info("model trained", "k", m.K())
	return m, nil
}

// parseFeatures parses "x1,x2,x3".
func parseFeatures(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feature %q in %q: %w", p, s, err)
		}
		out[i] = v
	}
	return out, nil
}
