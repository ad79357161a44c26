package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
	"go-naturalness-inspector/internal/service"
)

var scoreCmd = &cli.Command{
	Name:      "score",
	Usage:     "Score one or more image files",
	ArgsUsage: "<image> [image...]",
	UsageText: `niqe score photo.jpg                      # full pipeline with MODEL_SOURCE
   niqe --pipeline fast:256 score a.png b.png   # fast approximation`,
	Flags: []cli.Flag{
		historyFlag,
	},
	Action: cmdScore,
}

// fileResult is one line of CLI output.
type fileResult struct {
	File        string                `json:"file" yaml:"file"`
	Success     bool                  `json:"success" yaml:"success"`
	Score       *float64              `json:"score,omitempty" yaml:"score,omitempty"`
	Category    analyzer.Category     `json:"category,omitempty" yaml:"category,omitempty"`
	Pipeline    string                `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	TimeSec     float64               `json:"processing_time_sec" yaml:"processing_time_sec"`
	Error       string                `json:"error,omitempty" yaml:"error,omitempty"`
	Diagnostics *analyzer.Diagnostics `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return cli.ShowSubcommandHelp(cmd)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	results := make([]fileResult, len(files))
	failed := 0
	for i, f := range files {
		results[i] = scoreFile(ctx, s.svc, f, true)
		if !results[i].Success {
			failed++
		}
	}

	if err := encode(cmd.Root().Writer, cmd.String(formatFlag.Name), results); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

// scoreFile decodes and scores one file. Errors are reported in the result.
func scoreFile(ctx context.Context, svc service.ScoringService, path string, withDiagnostics bool) fileResult {
	start := time.Now()
	res := fileResult{File: path}

	img, err := decodeFile(path)
	if err != nil {
		res.Error = err.Error()
		res.TimeSec = time.Since(start).Seconds()
		logger.WithError(err).WithField("file", path).Warn("Cannot decode image")
		return res
	}

	out, err := svc.ScoreImage(ctx, img, path, "")
	res.TimeSec = time.Since(start).Seconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	score := out.Score
	res.Success = true
	res.Score = &score
	res.Category = out.Category
	res.Pipeline = out.Pipeline
	if withDiagnostics {
		d := out.Diagnostics
		res.Diagnostics = &d
	}
	return res
}

func decodeFile(path string) (*imaging.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := imaging.Decode(f)
	return img, err
}
