package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/variant"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Build: %s in %s\n\nVariants:\n", cfg.Build.System, cfg.Build.Dir)
			for _, vc := range cfg.Variants {
				strat, err := variant.New(vc, cfg.Build)
				if err != nil {
					fmt.Printf("  - %s [invalid: %v]\n", vc.Name, err)
					continue
				}
				state := "no training needed"
				if art := strat.TrainedArtifact(); art != nil {
					switch {
					case !art.Present():
						state = fmt.Sprintf("needs training (%s)", art.Path)
					case art.StaleAgainst(strat.ArtifactPath()):
						state = fmt.Sprintf("stale, needs retraining (%s)", art.Path)
					default:
						state = fmt.Sprintf("trained (%s)", art.Path)
					}
				}
				fmt.Printf("  - %s (kind: %s): %s\n", vc.Name, vc.Kind, state)
			}
			return nil
		},
	}
}
