package control

import (
	"fmt"
	"os"
	"path/filepath"

	"livecap/internal/config"
	"livecap/internal/service"

	"github.com/spf13/cobra"
)

func newServiceInstallCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install user launchd service (macOS)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			envPairs, _ := cmd.Flags().GetStringArray("env")
			env, err := service.ParseEnv(envPairs)
			if err != nil {
				return err
			}
			params := service.LaunchdParams{
				Label:  service.DefaultLabel,
				Binary: exe,
				Config: cfg.Paths.ConfigPath,
				Log:    filepath.Join(cfg.Paths.StateDir, "launchd.log"),
				Env:    env,
			}
			path, err := service.WritePlist(params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wrote %s\n", path)
			fmt.Fprintf(out, "captions will be saved under %s\n", cfg.Session.OutputDir)
			fmt.Fprintf(out, "load with: launchctl bootstrap gui/$(id -u) %s\n", path)
			fmt.Fprintf(out, "record with: livecap rec start [name]\n")
			return nil
		},
	}
	cmd.Flags().StringArray("env", nil, "environment for the agent, KEY=VAL (repeatable)")
	return cmd
}

func newServiceUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove user launchd plist (macOS)",
		RunE: func(cmd *cobra.Command, args []string) error {
			plist, err := service.Remove(service.DefaultLabel)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s; unload a running agent with: launchctl bootout gui/$(id -u)/%s\n", plist, service.DefaultLabel)
			return nil
		},
	}
}

func newServiceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show launchd plist path and whether it exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := service.Status(service.DefaultLabel)
			state := "not installed (livecap service install)"
			if ok {
				state = "installed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, state)
			return nil
		},
	}
}
