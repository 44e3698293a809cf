package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/startline/startline/internal/config"
	"github.com/startline/startline/internal/variant"
)

// newCheckCmd verifies the environment before an expensive run: runtime
// version, variant-specific tooling, and build artifacts. Every finding is
// printed with its remediation; any failure exits non-zero.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [variant]",
		Short: "Verify prerequisites for the configured variants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			variants, err := filterVariants(cfg.Variants, args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			failures := 0
			javaVersion, javaErr := variant.JavaVersion(ctx)
			if javaErr != nil {
				fmt.Printf("FAIL java: %v\n     remediation: install a JDK and put java on PATH\n", javaErr)
			} else {
				fmt.Printf("ok   java %s\n", javaVersion)
			}

			for _, vc := range variants {
				strat, err := variant.New(vc, cfg.Build)
				if err != nil {
					fmt.Printf("FAIL %s: %v\n", vc.Name, err)
					failures++
					continue
				}
				ok := true
				if required := strat.JavaVersion(); required != "" {
					if javaErr != nil || !variant.VersionMatches(required, javaVersion) {
						fmt.Printf("FAIL %s: needs java %s, found %s\n     remediation: switch JDKs (e.g. sdk use java %s)\n",
							vc.Name, required, orNone(javaVersion), required)
						ok = false
					}
				}
				if _, err := os.Stat(strat.ArtifactPath()); err != nil {
					fmt.Printf("FAIL %s: artifact %s missing\n     remediation: build the application first (%s)\n",
						vc.Name, strat.ArtifactPath(), buildHint(cfg.Build.System, vc.Kind))
					ok = false
				}
				if vc.Kind == "crac" {
					for _, tool := range []string{"jcmd", "criu"} {
						if _, err := exec.LookPath(tool); err != nil {
							fmt.Printf("FAIL %s: %s not found on PATH\n     remediation: checkpoint/restore needs %s installed\n",
								vc.Name, tool, tool)
							ok = false
						}
					}
				}
				if ok {
					fmt.Printf("ok   %s\n", vc.Name)
				} else {
					failures++
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d variants missing prerequisites", failures, len(variants))
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func buildHint(system, kind string) string {
	if kind == "native" {
		if system == "maven" {
			return "mvn -Pnative native:compile"
		}
		return "gradle nativeCompile"
	}
	if system == "maven" {
		return "mvn package"
	}
	return "gradle bootJar"
}
