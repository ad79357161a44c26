package main

import (
	"context"
	"fmt"
	"math"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"go-naturalness-inspector/internal/container"
	"go-naturalness-inspector/internal/factory"
	"go-naturalness-inspector/internal/features"
	"go-naturalness-inspector/internal/pristine"
)

var modelCmd = &cli.Command{
	Name:            "model",
	Usage:           "Pristine model utilities",
	HideHelpCommand: true,
	Commands: []*cli.Command{
		{
			Name:      "inspect",
			Usage:     "Load a model artifact and report its properties",
			UsageText: "niqe --model models/pristine.yaml model inspect",
			Action:    cmdModelInspect,
		},
	},
}

type modelReport struct {
	Source     string   `json:"source" yaml:"source"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Layout     string   `json:"layout,omitempty" yaml:"layout,omitempty"`
	Dim        int      `json:"dim" yaml:"dim"`
	Pooling    string   `json:"pooling" yaml:"pooling"`
	Inversion  string   `json:"inversion" yaml:"inversion"`
	Trace      float64  `json:"covariance_trace" yaml:"covariance_trace"`
	Condition  float64  `json:"condition_number" yaml:"condition_number"`
	Compatible bool     `json:"compatible" yaml:"compatible"`
	Problem    string   `json:"problem,omitempty" yaml:"problem,omitempty"`
	Features   []string `json:"features,omitempty" yaml:"features,omitempty"`
}

func cmdModelInspect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	model, err := container.LoadModel(ctx, factory.NewComponentFactory(cfg), cfg.ModelSource)
	if err != nil {
		return err
	}

	report := inspectModel(model)
	report.Source = cfg.ModelSource
	if err := encode(cmd.Root().Writer, cmd.String(formatFlag.Name), report); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

func inspectModel(m *pristine.Model) modelReport {
	cov := m.Covariance()
	report := modelReport{
		Name:      m.Name(),
		Layout:    m.Layout(),
		Dim:       m.Dim(),
		Pooling:   string(m.Pooling()),
		Inversion: string(m.Inversion()),
		Trace:     mat.Trace(cov),
		Condition: mat.Cond(cov, 2),
	}
	if math.IsInf(report.Condition, 0) {
		// JSON cannot carry Inf
		report.Condition = -1
	}

	if err := m.CheckCompatible(features.Dim, features.Layout); err != nil {
		report.Problem = err.Error()
	} else {
		report.Compatible = true
		report.Features = features.Names()
	}
	return report
}
