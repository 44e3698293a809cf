package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "startline",
		Short: "Benchmark harness for JVM startup-optimization techniques",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "startline.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newTrainCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newCheckCmd())
	return root
}
