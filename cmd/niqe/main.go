package main

import (
	"context"
	"os"

	"go-naturalness-inspector/internal/logger"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		logger.WithError(err).Error("niqe failed")
		os.Exit(1)
	}
}
