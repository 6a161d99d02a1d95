package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/config"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/llm"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and print the resolved providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Output: %s, max iterations: %d\n", cfg.Pipeline.OutputDir, cfg.Pipeline.MaxIterations)
			fmt.Fprintf(out, "Panel: %s (%s), metrics: %v\n", cfg.Server.Addr, cfg.Server.Transport, cfg.Server.MetricsEnabled)
			for _, role := range config.Roles {
				primary, secondary, err := cfg.Resolve(role)
				if err != nil {
					return err
				}
				printRole(out, role, primary, secondary)
			}
			return nil
		},
	}
}

func printRole(out io.Writer, role string, primary llm.ProviderConfig, secondary *llm.ProviderConfig) {
	fmt.Fprintf(out, "%-5s primary   %s key=%s max_tokens=%d temperature=%.2f\n",
		role, primary, maskKey(primary.APIKey), primary.MaxTokens, primary.Temperature)
	switch {
	case secondary == nil:
		fmt.Fprintf(out, "%-5s secondary (none)\n", role)
	case !secondary.Configured():
		fmt.Fprintf(out, "%-5s secondary %s disabled (no API key)\n", role, secondary)
	default:
		fmt.Fprintf(out, "%-5s secondary %s key=%s\n", role, secondary, maskKey(secondary.APIKey))
	}
}

// maskKey keeps only the last four characters of long keys.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(missing)"
	case len(key) <= 8:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}
