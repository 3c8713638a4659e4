package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/sovereignlabs/sovereignd/internal/config"
	"github.com/sovereignlabs/sovereignd/internal/coord"
	"github.com/sovereignlabs/sovereignd/internal/heart"
	"github.com/sovereignlabs/sovereignd/internal/logging"
	"github.com/sovereignlabs/sovereignd/internal/planner"
)

// planCmd plans a goal end to end
var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Plan and execute a goal through the validation gateway",
	Long: `Plan a goal: decompose it into subtasks, validate each against the
sovereignd policy gateway, execute the accepted ones, and print the
aggregated result.

Examples:
  # Plan a construction goal (decomposes into four phases)
  sovctl plan "build a REST API"

  # Run independent subtasks concurrently
  sovctl plan "build a REST API" --fanout 4`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var planFanout int

func init() {
	planCmd.Flags().IntVar(&planFanout, "fanout", 1, "max subtasks in flight at once")
}

// runPlan handles the plan command
func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger, err := logging.New("info", "console")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg := config.Default()
	cfg.Planner.FanoutLimit = planFanout

	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	defer nc.Close()

	store, err := coord.NewKVStore(ctx, nc, cfg.NATS.ResultBucket)
	if err != nil {
		return fmt.Errorf("failed to bind result bucket: %w", err)
	}

	p, err := planner.New(cfg.Planner, planner.Deps{
		Gateway:  heart.NewClient(serverURL),
		Store:    store,
		Bus:      coord.NewEventBus(nc, logger.Named("bus")),
		Executor: planner.ExecutorFunc(simulateExecution),
		Channel:  cfg.NATS.EventChannel,
		Logger:   logger.Named("planner"),
	})
	if err != nil {
		return fmt.Errorf("failed to build planner: %w", err)
	}

	result, err := p.PlanAndExecute(ctx, args[0])
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}
	return printJSON(result)
}

// simulateExecution stands in for a real execution backend. It completes
// immediately with a summary of what would have run.
func simulateExecution(ctx context.Context, st *planner.Subtask) (string, error) {
	return fmt.Sprintf("executed %q as %s", st.Action, st.Archetype), nil
}
