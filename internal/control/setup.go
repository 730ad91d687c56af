package control

import (
	"fmt"
	"os"
	"path/filepath"

	"livecap/internal/config"

	"github.com/spf13/cobra"
)

// NewSetupCmd downloads the configured model if missing.
func NewSetupCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download the configured whisper model if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			modelPath := os.ExpandEnv(cfg.ASR.ModelPath)
			if _, err := os.Stat(modelPath); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "model already present at", modelPath)
				return nil
			}
			name := filepath.Base(modelPath)
			if !knownModel(name) {
				return fmt.Errorf("%s is missing and %s is not a downloadable model; pick one with `livecap models set`", modelPath, name)
			}
			if err := os.MkdirAll(cfg.Session.OutputDir, 0o755); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloading model to %s\n", modelPath)
			if err := download(cmd.Context(), modelBaseURL+name, modelPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "model download complete")
			return nil
		},
	}
}
