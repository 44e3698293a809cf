package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/report"
	"github.com/startline/startline/internal/result"
	"github.com/startline/startline/internal/runner"
	"github.com/startline/startline/internal/variant"
)

var (
	flagBuildSystem string
	flagRuns        int
	flagWarmups     int
	flagExtra       string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [variant]",
		Short: "Execute a benchmark run",
		Long:  "Run the train/warm-up/benchmark sequence for the named variant, or for every configured variant when none is given. Individual variant failures are logged and skipped.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagBuildSystem, "buildsystem", "", "override build system (gradle or maven)")
	cmd.Flags().IntVar(&flagRuns, "runs", 0, "override benchmark repetition count")
	cmd.Flags().IntVar(&flagWarmups, "warmups", -1, "override warm-up count")
	cmd.Flags().StringVar(&flagExtra, "extra", "", "extra runtime parameters appended to every launch")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagBuildSystem != "" {
		if flagBuildSystem != "gradle" && flagBuildSystem != "maven" {
			return fmt.Errorf("buildsystem must be gradle or maven, got %q", flagBuildSystem)
		}
		cfg.Build.System = flagBuildSystem
	}
	if flagRuns > 0 {
		cfg.Runs = flagRuns
	}
	if flagWarmups >= 0 {
		cfg.Warmups = flagWarmups
	}

	variants, err := filterVariants(cfg.Variants, args)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	// An operator interrupt cancels the run; the in-flight trial's terminate
	// still executes, so no measured process is leaked.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []string
	if flagExtra != "" {
		extra = strings.Fields(flagExtra)
	}

	failed := 0
	for _, vc := range variants {
		strat, err := variant.New(vc, cfg.Build)
		if err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("Running variant %s (%d warm-ups, %d runs)...\n", strat.Name(), cfg.Warmups, cfg.Runs)
		if _, err := runner.RunVariant(ctx, &runner.Options{
			Strategy: strat,
			Config:   cfg,
			RunDir:   runDir,
			Extra:    extra,
		}); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("run interrupted: %w", ctx.Err())
			}
			// Fatal to this variant only; the rest of the run continues.
			fmt.Printf("  ERROR: variant %s: %v\n", strat.Name(), err)
			failed++
			continue
		}
	}

	fmt.Println("\n--- Results ---")
	if err := report.Generate(runDir, "table", os.Stdout); err != nil && failed < len(variants) {
		return err
	}
	if failed > 0 {
		fmt.Printf("\n%d of %d variants failed; see errors above\n", failed, len(variants))
	}
	return nil
}

func filterVariants(all []config.Variant, args []string) ([]config.Variant, error) {
	if len(args) == 0 {
		return all, nil
	}
	for _, v := range all {
		if v.Name == args[0] {
			return []config.Variant{v}, nil
		}
	}
	return nil, fmt.Errorf("variant %q not found in config", args[0])
}
