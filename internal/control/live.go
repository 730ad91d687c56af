package control

import (
	"fmt"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/config"
	"livecap/internal/history"
	"livecap/internal/hook"
	"livecap/internal/logging"
	"livecap/internal/session"
	"livecap/internal/tui"
	"livecap/internal/vad"

	"github.com/spf13/cobra"
)

// NewLiveCmd records from the microphone in the foreground with a live
// caption view.
func NewLiveCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live [name]",
		Short: "Record and caption in the foreground",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Foreground(cfg)
			if err != nil {
				return err
			}
			if dev, _ := cmd.Flags().GetString("device"); dev != "" {
				cfg.Audio.DeviceName = dev
			}
			overwrite := cfg.Session.Overwrite
			if ok, _ := cmd.Flags().GetBool("overwrite"); ok {
				overwrite = "always"
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			ctx := cmd.Context()
			backend, err := asr.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			if !backend.Ready() {
				fmt.Fprintf(cmd.ErrOrStderr(), "loading %s model...\n", backend.Name())
			}
			if err := waitReady(ctx, backend); err != nil {
				return err
			}

			mic, err := audio.NewMic()
			if err != nil {
				return err
			}
			defer mic.Close()

			opts := session.OptionsFromConfig(cfg)
			opts.Backend = backend
			opts.Source = mic
			if cfg.VAD.Enabled {
				gate, err := vad.NewWebRTC(cfg.VAD.Aggressiveness, cfg.VAD.FrameMS, cfg.VAD.MinVoicedFrames)
				if err != nil {
					logger.Warnf("vad disabled: %v", err)
				} else {
					opts.Gate = gate
				}
			}
			if r := hook.NewRunner(cfg, logger); r.Enabled() {
				opts.Hook = r
			}
			if cfg.History.Enabled {
				store, err := history.Open(cfg.History.Path)
				if err != nil {
					logger.Warnf("history disabled: %v", err)
				} else {
					defer store.Close()
					opts.Archiver = store
				}
			}
			return tui.Run(opts, overwrite, name, logger)
		},
	}
	cmd.Flags().String("device", "", "capture device name or index (default: audio.device_name)")
	cmd.Flags().Bool("overwrite", false, "replace existing output files without asking")
	return cmd
}
