package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachescope/instrumentation/gate"
)

type envView struct {
	gate.Activation
	CompilerFlags []string `json:"compilerFlags"`
	LinkerFlags   []string `json:"linkerFlags"`
}

func newEnvCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show whether builds would be instrumented",
		Long: "Check " + gate.EnableVar + " and the instrumentation " +
			"installation, then print the flags a build would use.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := gate.New(logrus.StandardLogger()).Detect()
			v := envView{
				Activation:    a,
				CompilerFlags: a.CompilerFlags(),
				LinkerFlags:   a.LinkerFlags(),
			}

			out := cmd.OutOrStdout()

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			case "text":
				fmt.Fprintf(out, "enabled: %t\n", v.Enabled)
				if v.Root != "" {
					fmt.Fprintf(out, "root: %s\n", v.Root)
				}
				if v.Reason != "" {
					fmt.Fprintf(out, "reason: %s\n", v.Reason)
				}
				if v.Enabled {
					fmt.Fprintf(out, "cflags: %s\n", strings.Join(v.CompilerFlags, " "))
					fmt.Fprintf(out, "ldflags: %s\n", strings.Join(v.LinkerFlags, " "))
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}
