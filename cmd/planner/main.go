package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/supplyopt/planner/pkg/events"
	"github.com/supplyopt/planner/pkg/loader"
	"github.com/supplyopt/planner/pkg/milp"
	"github.com/supplyopt/planner/pkg/milp/gonumbb"
	"github.com/supplyopt/planner/pkg/plan"
)

func main() {
	var (
		inputFile  = flag.String("input", "data.json", "Path to dataset file (JSON or YAML)")
		configFile = flag.String("config", "", "Optional planner config file (YAML)")
		outputDir  = flag.String("output", "", "Output directory for results (optional)")
		format     = flag.String("format", "text", "Output format: text, json, csv")
		backend    = flag.String("backend", "", "MILP backend name (default: first registered)")
		phaseOrder = flag.String("phase-order", "", "Phase order: canonical or buy-first")
		verbose    = flag.Bool("verbose", false, "Enable verbose output")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *format == "text" && cfg.Format != "" {
		*format = cfg.Format
	}
	if *phaseOrder == "" {
		*phaseOrder = cfg.PhaseOrder
	}

	if err := run(*inputFile, *outputDir, *format, *backend, *phaseOrder, *verbose, cfg, logger); err != nil {
		switch {
		case errors.Is(err, plan.ErrConfig):
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		case errors.Is(err, milp.ErrUnavailable):
			fmt.Fprintf(os.Stderr, "Solver error: %v\n", err)
		case errors.Is(err, milp.ErrInfeasible):
			fmt.Fprintf(os.Stderr, "No feasible plan: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// config carries solver tuning read from an optional YAML file.
type config struct {
	Epsilon    float64
	NodeBudget int
	PhaseOrder string
	Format     string
}

func loadConfig(path string) (config, error) {
	v := viper.New()
	v.SetDefault("epsilon", plan.DefaultEpsilon)
	v.SetDefault("node_budget", 0)
	v.SetDefault("phase_order", "canonical")
	v.SetDefault("format", "")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return config{
		Epsilon:    v.GetFloat64("epsilon"),
		NodeBudget: v.GetInt("node_budget"),
		PhaseOrder: v.GetString("phase_order"),
		Format:     v.GetString("format"),
	}, nil
}

func run(inputFile, outputDir, format, backend, phaseOrder string, verbose bool, cfg config, logger *slog.Logger) error {
	dataset, err := loader.Load(inputFile)
	if err != nil {
		return err
	}
	logger.Debug("dataset loaded",
		"products", len(dataset.Products),
		"locations", len(dataset.Locations),
		"periods", len(dataset.Periods),
		"lanes", len(dataset.Lanes),
	)

	model, err := plan.Build(dataset)
	if err != nil {
		return err
	}
	logger.Debug("model built",
		"variables", model.MILP.NumVariables(),
		"constraints", model.MILP.NumConstraints(),
	)

	solver, err := milp.New(backend)
	if err != nil {
		return err
	}
	if bb, ok := solver.(*gonumbb.Solver); ok && cfg.NodeBudget > 0 {
		bb.NodeBudget = cfg.NodeBudget
	}

	order := plan.PhaseOrderCanonical
	switch phaseOrder {
	case "", "canonical":
	case "buy-first":
		order = plan.PhaseOrderBuyFirst
	default:
		return fmt.Errorf("%w: unknown phase order %q", plan.ErrConfig, phaseOrder)
	}

	store := events.NewInMemoryStore()
	runID := events.NewRunID()

	metrics, err := plan.Solve(context.Background(), model, solver, plan.SolveOptions{
		Epsilon: cfg.Epsilon,
		Order:   order,
		Logger:  logger,
		Events:  store,
		RunID:   runID,
	})
	if err != nil {
		return err
	}

	logger.Info("plan solved",
		"backlog", metrics.Backlog,
		"inventory", metrics.Inventory,
		"buy_volume", metrics.BuyVolume,
	)

	if verbose {
		recorded, _ := store.ReadEvents(runID)
		for _, ev := range recorded {
			logger.Debug("event", "type", ev.Type(), "data", ev.Data())
		}
	}

	projection := plan.Project(model, metrics)
	return writeOutput(projection, outputConfig{
		Format:    format,
		OutputDir: outputDir,
	})
}
