package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"segmenter/internal/logutil"
	"segmenter/internal/quantize"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		if isHelp(err) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := logutil.New(opts.cfg.Log.Level, opts.cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if opts.kFallback != "" {
		logger.Warn("cluster count is not a number, using default",
			zap.String("value", opts.kFallback),
			zap.Int("clusters", opts.cfg.Clusters),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle termination signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		logger.Info("received termination signal, shutting down")
		cancel()
	}()

	seed := opts.cfg.ResolveSeed(time.Now())
	processor := quantize.NewProcessor(opts.cfg, logger)
	jobs, err := processor.Jobs(opts.inputs, seed)
	if err != nil {
		logger.Error("invalid inputs", zap.Error(err))
		return 1
	}

	logger.Info("starting color quantization",
		zap.Int("images", len(jobs)),
		zap.Int("clusters", opts.cfg.Clusters),
		zap.Uint64("seed", seed),
	)
	reports, err := processor.ProcessAll(ctx, jobs)
	if err != nil {
		logger.Error("quantization failed", zap.Error(err))
		return 1
	}

	for _, r := range reports {
		logger.Info("palette", zap.String("output", r.Output), zap.Any("colors", r.Palette))
	}
	return 0
}
