package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/logger"
)

var (
	dirFlag = &cli.StringFlag{
		Name:     "dir",
		Aliases:  []string{"d"},
		Usage:    "Folder to scan for images",
		Required: true,
	}

	recursiveFlag = &cli.BoolFlag{
		Name:  "recursive",
		Usage: "Descend into sub folders (optional, default: false)",
	}

	batchCmd = &cli.Command{
		Name:  "batch",
		Usage: "Score every image in a folder and summarize",
		UsageText: `niqe batch --dir ./photos
   niqe --pipeline fast batch --dir ./photos --recursive --format yaml`,
		Flags: []cli.Flag{
			dirFlag,
			recursiveFlag,
			historyFlag,
		},
		Action: cmdBatch,
	}
)

// folderStats summarizes the successful scores of a folder.
type folderStats struct {
	Total        int                       `json:"total" yaml:"total"`
	Successful   int                       `json:"successful" yaml:"successful"`
	Failed       int                       `json:"failed" yaml:"failed"`
	Mean         float64                   `json:"mean" yaml:"mean"`
	Median       float64                   `json:"median" yaml:"median"`
	Min          float64                   `json:"min" yaml:"min"`
	Max          float64                   `json:"max" yaml:"max"`
	StdDev       float64                   `json:"std" yaml:"std"`
	Distribution map[analyzer.Category]int `json:"distribution" yaml:"distribution"`
	TotalTimeSec float64                   `json:"total_time_sec" yaml:"total_time_sec"`
}

type batchReport struct {
	Dir      string       `json:"dir" yaml:"dir"`
	Pipeline string       `json:"pipeline" yaml:"pipeline"`
	Summary  folderStats  `json:"summary" yaml:"summary"`
	Results  []fileResult `json:"results" yaml:"results"`
}

func cmdBatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir := cmd.String(dirFlag.Name)
	files, err := listImages(dir, cmd.Bool(recursiveFlag.Name))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported images in %s (extensions %v)", dir, imaging.SupportedExtensions)
	}

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.WithFields(logrus.Fields{
		"dir":      dir,
		"images":   len(files),
		"pipeline": s.svc.Health().Pipelines,
	}).Info("Scoring folder")

	start := time.Now()
	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(cfg.Workers())
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = scoreFile(ctx, s.svc, f, false)
			return nil
		})
	}
	g.Wait()

	report := batchReport{
		Dir:     dir,
		Summary: summarizeFolder(results, time.Since(start)),
		Results: results,
	}
	for _, r := range results {
		if r.Pipeline != "" {
			report.Pipeline = r.Pipeline
			break
		}
	}

	if err := encode(cmd.Root().Writer, cmd.String(formatFlag.Name), report); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

// listImages returns the supported image files under dir in lexical order.
func listImages(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if imaging.IsSupportedFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func summarizeFolder(results []fileResult, elapsed time.Duration) folderStats {
	summary := folderStats{
		Total:        len(results),
		Distribution: make(map[analyzer.Category]int),
		TotalTimeSec: elapsed.Seconds(),
	}

	scores := make([]float64, 0, len(results))
	for _, r := range results {
		if !r.Success || r.Score == nil {
			summary.Failed++
			continue
		}
		summary.Successful++
		scores = append(scores, *r.Score)
		summary.Distribution[r.Category]++
	}
	if len(scores) == 0 {
		return summary
	}

	sort.Float64s(scores)
	summary.Mean = stat.Mean(scores, nil)
	if n := len(scores); n%2 == 1 {
		summary.Median = scores[n/2]
	} else {
		summary.Median = (scores[n/2-1] + scores[n/2]) / 2
	}
	summary.Min = floats.Min(scores)
	summary.Max = floats.Max(scores)
	if len(scores) > 1 {
		summary.StdDev = stat.StdDev(scores, nil)
	}
	return summary
}
