package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/config"
	"go-naturalness-inspector/internal/container"
	"go-naturalness-inspector/internal/factory"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
	"go-naturalness-inspector/internal/observer"
	"go-naturalness-inspector/internal/pristine"
	"go-naturalness-inspector/internal/repository"
	"go-naturalness-inspector/internal/service"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	modelFlag = &cli.StringFlag{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   "Pristine model artifact: path, http(s) URL or azblob://container/blob",
		Sources: cli.EnvVars("MODEL_SOURCE"),
	}

	pipelineFlag = &cli.StringFlag{
		Name:    "pipeline",
		Aliases: []string{"p"},
		Usage:   "Scoring pipeline [full, fast, fast:<size>]",
		Sources: cli.EnvVars("DEFAULT_PIPELINE"),
	}

	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Worker count for patch features and batch items (0 = auto)",
	}

	cropFlag = &cli.IntFlag{
		Name:  "crop-border",
		Usage: "Pixels removed from every side before scoring",
	}

	historyFlag = &cli.StringFlag{
		Name:    "db",
		Usage:   "Path to a SQLite file recording every score (optional)",
		Sources: cli.EnvVars("HISTORY_DB"),
	}
)

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:            "niqe",
		Version:         service.Version,
		Usage:           "No-reference naturalness scoring for images",
		HideHelpCommand: true,
		Writer:          out,
		Flags: []cli.Flag{
			debugFlag,
			formatFlag,
			modelFlag,
			pipelineFlag,
			workersFlag,
			cropFlag,
		},
		Commands: []*cli.Command{
			scoreCmd,
			batchCmd,
			modelCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger.UseTextOutput(os.Stderr, cmd.Bool(debugFlag.Name))
			return ctx, nil
		},
	}
}

// loadConfig starts from the environment and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if v := cmd.String(modelFlag.Name); v != "" {
		cfg.ModelSource = v
	}
	if v := cmd.String(pipelineFlag.Name); v != "" {
		cfg.Scoring.DefaultPipeline = v
	}
	if n := int(cmd.Int(workersFlag.Name)); n > 0 {
		cfg.MaxWorkers = n
	}
	if n := int(cmd.Int(cropFlag.Name)); n > 0 {
		cfg.Scoring.CropBorder = n
	}
	if v := cmd.String(historyFlag.Name); v != "" {
		cfg.HistoryDB = v
	}
	imaging.SetMaxPixels(cfg.MaxImagePixels)
	return cfg, nil
}

// session is the scoring stack a command runs against.
type session struct {
	svc      service.ScoringService
	analyzer *analyzer.Analyzer
	results  repository.ResultRepository
	metrics  *observer.MetricsObserver
}

func (s *session) Close() {
	if s.results != nil {
		s.results.Close()
	}
	s.analyzer.Close()
}

// newSession builds the service for cfg. The pristine model is loaded only
// when the configured pipeline needs it; a load failure aborts the command.
func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	p, err := analyzer.ParsePipeline(cfg.Scoring.DefaultPipeline, cfg.Scoring.ResizeTo)
	if err != nil {
		return nil, err
	}

	components := factory.NewComponentFactory(cfg)
	var model *pristine.Model
	if p.Kind == analyzer.PipelineFull {
		model, err = container.LoadModel(ctx, components, cfg.ModelSource)
		if err != nil {
			return nil, err
		}
	}

	a, err := components.CreateAnalyzer(model)
	if err != nil {
		return nil, err
	}

	s := &session{analyzer: a, metrics: observer.NewMetricsObserver()}
	if cfg.HistoryDB != "" {
		db, err := repository.NewSQLiteResultRepository(cfg.HistoryDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening history database: %w", err)
		}
		s.results = db
	}

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(s.metrics)

	s.svc = service.NewScoringService(a, nil, s.results, publisher, s.metrics, nil, service.Settings{
		DefaultPipeline:  p.String(),
		AnalysisTimeout:  cfg.AnalysisTimeout,
		BatchConcurrency: cfg.Workers(),
	})
	return s, nil
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML || format == "yml" {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
