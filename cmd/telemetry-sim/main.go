package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/simulator"
	"github.com/okian/aura/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	def := simulator.DefaultConfig()
	fs := pflag.NewFlagSet("telemetry-sim", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Aura Telemetry Simulator
========================

Generates seeded game sessions, sends them to a running server and checks
the round and session summaries against what was sent.

Usage:
  telemetry-sim [flags]

Flags:
%s`, fs.FlagUsages())
	}

	var (
		cfg        = def
		logFile    string
		runTimeout time.Duration
	)
	fs.StringVarP(&cfg.BaseURL, "url", "u", def.BaseURL, "Base URL of the service")
	fs.IntVarP(&cfg.Subjects, "subjects", "n", def.Subjects, "Number of simulated subjects")
	fs.IntVar(&cfg.Rounds, "rounds", def.Rounds, "Rounds per subject (1-3)")
	fs.IntVar(&cfg.Targets, "targets", def.Targets, "Targets per round")
	fs.Uint64Var(&cfg.Seed, "seed", def.Seed, "Generator seed")
	fs.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Subjects sent concurrently")
	fs.DurationVar(&cfg.Timeout, "timeout", def.Timeout, "HTTP request timeout")
	fs.StringVar(&cfg.Compression, "compression", "", "Request compression: gzip or zstd")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	fs.StringVar(&logFile, "log", "-", "Log file; empty for a timestamped name, - for stdout only")
	fs.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if cfg.Rounds < model.MinRound || cfg.Rounds > model.MaxRound {
		fmt.Fprintln(os.Stderr, "rounds must be within 1..3")
		return 2
	}

	closer, err := simulator.SetupLogging(logFile, cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to setup logging: "+err.Error())
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if _, err := simulator.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		return 1
	}
	logger.Get().Info(ctx, "simulation completed successfully")
	return 0
}
