package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/runner"
	"github.com/startline/startline/internal/variant"
)

var flagForceTrain bool

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <variant>",
		Short: "Build a variant's checkpoint artifact without benchmarking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			variants, err := filterVariants(cfg.Variants, args)
			if err != nil {
				return err
			}
			strat, err := variant.New(variants[0], cfg.Build)
			if err != nil {
				return err
			}
			art := strat.TrainedArtifact()
			if art == nil {
				return fmt.Errorf("variant %s needs no training", strat.Name())
			}
			if flagForceTrain || art.StaleAgainst(strat.ArtifactPath()) {
				// Artifacts are regenerated wholesale, never patched in place.
				if err := os.RemoveAll(art.Path); err != nil {
					return fmt.Errorf("removing stale artifact %s: %w", art.Path, err)
				}
			} else if art.Present() {
				fmt.Printf("%s: artifact %s already present (use --force to regenerate)\n", strat.Name(), art.Path)
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			trainDir, err := os.MkdirTemp("", "startline-train-")
			if err != nil {
				return fmt.Errorf("creating training dir: %w", err)
			}
			if err := runner.Train(ctx, &runner.Options{
				Strategy: strat,
				Config:   cfg,
				RunDir:   trainDir,
			}); err != nil {
				return err
			}
			fmt.Printf("%s: trained, artifact at %s\n", strat.Name(), art.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flagForceTrain, "force", false, "discard and regenerate an existing artifact")
	return cmd
}
