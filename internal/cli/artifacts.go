package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
)

// NewArtifactsCmd lists the output directory or renders the PRD.
func NewArtifactsCmd(opts *Options) *cobra.Command {
	var showPRD bool
	var style string
	var width int

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List generated artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			store, err := artifacts.NewWriter(cfg.Pipeline.OutputDir, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if showPRD {
				src, err := store.Read(artifacts.PRDFile)
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("no %s in %s; run generate first", artifacts.PRDFile, store.Dir())
				}
				if err != nil {
					return err
				}
				rendered, err := renderMarkdown(string(src), style, width)
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
				return nil
			}

			entries, err := store.List()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headingStyle.Render(store.Dir()))
			if len(entries) == 0 {
				fmt.Fprintln(out, faintStyle.Render("  (empty)"))
			}
			for _, e := range entries {
				fmt.Fprintf(out, "  %s %s\n", fileStyle.Render(fmt.Sprintf("%-32s", e.Name)), faintStyle.Render(fmt.Sprintf("%8d B", e.Size)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPRD, "prd", false, "Render PRD.md in the terminal")
	cmd.Flags().StringVar(&style, "style", "auto", "Markdown style: auto, dark, light or notty")
	cmd.Flags().IntVar(&width, "width", 80, "Word wrap width for --prd")
	return cmd
}

func renderMarkdown(src, style string, width int) (string, error) {
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStylePath(style)
	}
	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	return renderer.Render(src)
}
