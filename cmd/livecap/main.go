package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"livecap/internal/control"
	"livecap/internal/daemon"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "livecap",
		Short: "livecap: live captions from your microphone",
		Long: `livecap records your microphone in fixed-size chunks, transcribes each chunk as it arrives
(whisper.cpp, an HTTP inference server, a remote livecap over gRPC, or Google Cloud Speech),
and saves the session as WAV plus TXT, SRT, TSV and VTT captions.

Key commands:
  live [name]               Foreground recording with a live caption view
  start|stop|restart        Background daemon lifecycle
  rec start|stop|save       Control recording in the daemon
  status [--json]           Session state + recent captions
  transcribe <wav>          Caption an existing recording
  history list|show         Browse saved sessions
  mic list|set              Select microphone (alias: microphone, mics)
  doctor|setup              Check deps / download default model
  models list|download|set  Manage whisper.cpp models
  serve-rpc                 Share this machine's backend over gRPC
  service install|uninstall|status   launchd helper (macOS)
  health|tail-log|test-hook Liveness, caption log tail, manual hook

Notable flags/env:
  --metrics-addr <addr>     Enable /metrics (Prometheus text)
  --live-addr <addr>        Stream captions on ws://<addr>/ws
  Env overrides: LIVECAP_BACKEND, LIVECAP_HTTP_URL, LIVECAP_RPC_ADDR,
                 LIVECAP_OUTPUT_DIR, LIVECAP_MAX_DURATION_SEC,
                 LIVECAP_METRICS_ADDR, LIVECAP_LIVE_ADDR,
                 LIVECAP_LOG_LEVEL/FORMAT, LIVECAP_TRANSCRIPTS_ENABLED`,
		Example: `  livecap live standup
  livecap start --metrics-addr 127.0.0.1:9317
  livecap rec start standup && livecap rec stop
  livecap transcribe meeting.wav -f srt > meeting.srt
  livecap models download ggml-medium-q5_1.bin
  livecap service install --env LIVECAP_LIVE_ADDR=127.0.0.1:9318`,
		DisableFlagsInUseLine: true,
	}

	root.Version = version
	root.SetVersionTemplate("livecap v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/livecap/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewLiveCmd(cfgPath))
	root.AddCommand(daemon.NewStartCmd(cfgPath))
	root.AddCommand(daemon.NewStopCmd(cfgPath))
	root.AddCommand(daemon.NewRestartCmd(cfgPath))
	root.AddCommand(control.NewRecCmd(cfgPath))
	root.AddCommand(control.NewStatusCmd(cfgPath))
	root.AddCommand(control.NewTranscribeCmd(cfgPath))
	root.AddCommand(control.NewHistoryCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewTestHookCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewServiceRootCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewHealthCmd(cfgPath))
	root.AddCommand(control.NewModelsCmd(cfgPath))
	root.AddCommand(control.NewServeRPCCmd(cfgPath))

	// Hidden internal serve command used by start.
	root.AddCommand(daemon.NewServeCmd(cfgPath))

	applyColorHelp(root)

	// Interrupting a foreground transcribe still saves what was captioned.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%slivecap%s: live captions from your microphone %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sRecords in chunks, transcribes as it goes, saves WAV + TXT/SRT/TSV/VTT.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  livecap [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  live [name]                 foreground recording with live captions")
		writeln("  start|stop|restart          daemon lifecycle")
		writeln("  rec start|stop|save         control recording in the daemon")
		writeln("  status [--json]             session state + recent captions")
		writeln("  transcribe <wav>            caption an existing recording")
		writeln("  history list|show           browse saved sessions")
		writeln("  mic list|set                select input device (alias: microphone, mics)")
		writeln("  doctor                      check backend/output dir/hook/portaudio")
		writeln("  setup                       download default whisper model")
		writeln("  models list|download|set    manage whisper.cpp models")
		writeln("  serve-rpc                   share the backend over gRPC")
		writeln("  service install|uninstall|status manage launchd plist (macOS)")
		writeln("  health                      control-socket liveness ping")
		writeln("  tail-log                    show last caption or log lines")
		writeln("  test-hook <wav>             run the post-save hook manually")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus)")
		writeln("  --live-addr <addr>      stream captions over WebSocket")
		writeln("  --backend <kind>        whisper, http, grpc or google")
		writeln("  -c, --config <path>     config file (default ~/.config/livecap/config.toml)")
		writeln("  Env: LIVECAP_BACKEND=http, LIVECAP_HTTP_URL=url, LIVECAP_RPC_ADDR=host:port,")
		writeln("       LIVECAP_OUTPUT_DIR=dir, LIVECAP_MAX_DURATION_SEC=7200,")
		writeln("       LIVECAP_METRICS_ADDR=host:port, LIVECAP_LIVE_ADDR=host:port,")
		writeln("       LIVECAP_LOG_LEVEL=debug, LIVECAP_LOG_FORMAT=json, LIVECAP_TRANSCRIPTS_ENABLED=0")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  livecap live standup")
		writeln("  livecap start --metrics-addr 127.0.0.1:9317")
		writeln("  livecap rec start standup && livecap rec stop")
		writeln("  livecap rec save standup --overwrite")
		writeln("  livecap transcribe meeting.wav -f srt > meeting.srt")
		writeln("  livecap models download ggml-medium-q5_1.bin")
		writeln("  livecap service install --env LIVECAP_LIVE_ADDR=127.0.0.1:9318")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
