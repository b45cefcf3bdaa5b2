package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/zylofm/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	err := runner.app().Run(context.Background(), os.Args)
	runner.Close()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented", "error", err)
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
