package control

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"livecap/internal/audio"
	"livecap/internal/config"

	"github.com/spf13/cobra"
)

// NewMicCmd groups mic subcommands.
func NewMicCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mic",
		Aliases: []string{"microphone", "mics"},
		Short:   "Microphone management",
	}
	cmd.AddCommand(newMicListCmd(cfgPath))
	cmd.AddCommand(newMicSetCmd(cfgPath))
	return cmd
}

func newMicListCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			var devs []audio.Device
			if viaDaemon, _ := cmd.Flags().GetBool("daemon"); viaDaemon {
				resp, err := send(*cfgPath, Request{Op: OpDevices})
				if err != nil {
					return err
				}
				devs = resp.Devices
			} else {
				mic, err := audio.NewMic()
				if err != nil {
					return err
				}
				defer mic.Close()
				if devs, err = mic.Devices(); err != nil {
					return err
				}
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(devs)
			}
			printDevices(cmd.OutOrStdout(), devs)
			if len(devs) == 0 && runtime.GOOS == "darwin" {
				fmt.Fprintln(cmd.OutOrStdout(), "tip: if no devices appear, install PortAudio: brew install portaudio")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	cmd.Flags().Bool("daemon", false, "ask the running daemon instead of opening PortAudio here")
	return cmd
}

func printDevices(w io.Writer, devs []audio.Device) {
	for _, d := range devs {
		mark := ""
		if d.Default {
			mark = " (default)"
		}
		fmt.Fprintf(w, "[%s] %s%s (in %d ch, latency %.2fms)\n", d.ID, d.Name, mark, d.Channels, d.LatencyMs)
	}
}

func newMicSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <index-or-name>",
		Short: "Set the capture device in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			cfg.Audio.DeviceName = args[0]
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mic set to %q in %s\n", args[0], cfg.Paths.ConfigPath)
			return nil
		},
	}
}
