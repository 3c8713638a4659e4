// Package main implements the sovctl CLI for manual operations against
// the sovereignd daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sovereignlabs/sovereignd/internal/heart"
)

var (
	// serverURL is the base URL for the sovereignd HTTP server
	serverURL string
	// natsURL is the coordination store connection URL
	natsURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sovctl",
	Short: "CLI for sovereignd daemon operations",
	Long: `sovctl is a command-line interface for interacting with the sovereignd daemon.
It provides commands for planning goals, validating actions, and inspecting
the policy gateway.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9001", "sovereignd server URL")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats", "nats://localhost:4222", "NATS URL for coordination")
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(invariantsCmd)
}

// validateCmd submits one action to the gateway
var validateCmd = &cobra.Command{
	Use:   "validate [action]",
	Short: "Validate a single action against the policy gateway",
	Long: `Validate a single action against the sovereignd policy gateway.

Examples:
  # Validate an action
  sovctl validate "implement core"

  # Validate with explicit intent and complexity
  sovctl validate "implement core" --intent "add the parser" --complexity 0.8`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateIntent     string
	validateComplexity float64
)

func init() {
	validateCmd.Flags().StringVar(&validateIntent, "intent", "", "declared intent for the action")
	validateCmd.Flags().Float64Var(&validateComplexity, "complexity", 0.5, "declared complexity in [0,1]")
}

// healthCmd checks daemon health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check sovereignd gateway health",
	RunE:  runHealth,
}

// invariantsCmd prints the active validation thresholds
var invariantsCmd = &cobra.Command{
	Use:   "invariants",
	Short: "Show the active validation thresholds",
	RunE:  runInvariants,
}

// runValidate handles the validate command
func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := heart.NewClient(serverURL)
	verdict, err := client.Validate(ctx, args[0], validateIntent, validateComplexity)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return printJSON(verdict)
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := heart.NewClient(serverURL)
	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return printJSON(health)
}

// runInvariants handles the invariants command
func runInvariants(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client := heart.NewClient(serverURL)
	thresholds, err := client.Invariants(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch invariants: %w", err)
	}
	return printJSON(thresholds)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
