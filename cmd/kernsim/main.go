// kernsim — a simulator for five Linux kernel subsystems (CFS-style CPU
// scheduler, RCU callback engine, HTB+ETF traffic shaper, CUBIC/BIC
// congestion control, and the NOHZ tick manager), driven by synthetic
// workload and reduced to a USE-methodology health report.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	diffpkg "github.com/dmitriimaksimovdevelop/kernsim/internal/diff"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/orchestrator"
	"github.com/dmitriimaksimovdevelop/kernsim/internal/output"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kernsim",
		Short: "Simulator for five Linux kernel subsystems",
		Long: `kernsim — single Go binary simulating CFS scheduling, RCU, HTB+ETF
traffic shaping, CUBIC/BIC congestion control, and NOHZ tick management.

Drives each subsystem with synthetic workload for a configurable profile
duration, then reduces the run to USE-methodology health metrics, detected
anomalies, and tuning recommendations.`,
		Version: version,
	}

	var (
		runProfile  string
		runScenario string
		runOnly     string
		runSeed     int64
		runOutput   string
		runQuiet    bool
		runVerbose  bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload scenario and produce a health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := orchestrator.RunConfig{
				Profile:      runProfile,
				ScenarioFile: runScenario,
				Seed:         runSeed,
				Quiet:        runQuiet,
				Verbose:      runVerbose,
			}
			if runOnly != "" {
				cfg.Only = strings.Split(runOnly, ",")
				for i := range cfg.Only {
					cfg.Only[i] = strings.TrimSpace(cfg.Only[i])
				}
			}

			report, err := orchestrator.New(cfg).Run(context.Background())
			if err != nil {
				return err
			}
			return output.WriteJSON(report, runOutput)
		},
	}
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "standard", "Run profile: smoke, standard, soak")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "YAML file overriding the profile's duration/num_cpus/intensity knobs")
	runCmd.Flags().StringVar(&runOnly, "only", "", "Comma-separated component subset (default: all five)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "RNG seed (0 = derive from wall clock)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "-", "Output file path (- for stdout)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress output")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Enable debug logging")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Alias for 'run --profile smoke' — a quick health snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := orchestrator.RunConfig{Profile: "smoke", Quiet: true}
			report, err := orchestrator.New(cfg).Run(context.Background())
			if err != nil {
				return err
			}
			return output.WriteJSON(report, "-")
		},
	}

	var diffOutput string
	diffCmd := &cobra.Command{
		Use:   "diff <baseline.json> <current.json>",
		Short: "Compare two kernsim reports",
		Long:  "Produce a diff report showing USE-metric deltas and health-score regressions/improvements.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(args[0], args[1], diffOutput)
		},
	}
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "-", "Output diff file path")

	rootCmd.AddCommand(runCmd, statsCmd, diffCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDiff(baselinePath, currentPath, outputPath string) error {
	baseline, err := diffpkg.LoadReport(baselinePath)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	current, err := diffpkg.LoadReport(currentPath)
	if err != nil {
		return fmt.Errorf("load current: %w", err)
	}

	result := diffpkg.Compare(baseline, current)

	if outputPath == "-" {
		fmt.Print(diffpkg.FormatDiff(result))
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}
