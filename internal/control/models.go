package control

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"livecap/internal/config"

	"github.com/spf13/cobra"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// modelRegistry lists the ggml models offered for download.
var modelRegistry = []string{
	"ggml-base.en.bin",
	"ggml-small.en.bin",
	"ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin",
	"ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin",
	"ggml-large-v3-turbo.bin",
}

func knownModel(name string) bool {
	for _, n := range modelRegistry {
		if n == name {
			return true
		}
	}
	return false
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			listModels(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func listModels(w io.Writer, cfg *config.Config) {
	local := map[string]bool{}
	entries, _ := os.ReadDir(cfg.Paths.ModelDir)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bin") {
			local[e.Name()] = true
		}
	}
	names := append([]string{}, modelRegistry...)
	for n := range local {
		if !knownModel(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	active := filepath.Base(cfg.ASR.ModelPath)
	for _, n := range names {
		var marks []string
		if local[n] {
			marks = append(marks, "downloaded")
		}
		if n == active {
			marks = append(marks, "active")
		}
		if len(marks) > 0 {
			fmt.Fprintf(w, "- %s (%s)\n", n, strings.Join(marks, ", "))
		} else {
			fmt.Fprintf(w, "- %s\n", n)
		}
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model>",
		Short: "Download a model from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := args[0]
			if !knownModel(name) {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			dest := filepath.Join(cfg.Paths.ModelDir, name)
			fmt.Fprintf(cmd.OutOrStdout(), "downloading %s -> %s\n", name, dest)
			return download(cmd.Context(), modelBaseURL+name, dest)
		},
	}
}

// download fetches url into dest via a .part file.
func download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set asr.model_path in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.ASR.ModelPath = resolveModelPath(cfg, args[0])
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", cfg.ASR.ModelPath)
			return nil
		},
	}
}

// resolveModelPath places bare model names in the model directory.
func resolveModelPath(cfg *config.Config, val string) string {
	if strings.ContainsRune(val, filepath.Separator) || strings.Contains(val, "/") {
		return val
	}
	return filepath.Join(cfg.Paths.ModelDir, val)
}
