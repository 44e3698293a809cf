package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Generate a cross-variant summary from stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			var runDir string
			if len(args) > 0 {
				runDir = args[0]
			} else {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				runDir, err = report.Latest(cfg.Results.Dir)
				if err != nil {
					return err
				}
			}
			return report.Generate(runDir, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
