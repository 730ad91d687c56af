package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"livecap/internal/asr"
	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/config"
	"livecap/internal/history"
	"livecap/internal/hook"
	"livecap/internal/live"
	"livecap/internal/logging"
	"livecap/internal/session"
	"livecap/internal/subtitle"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewTranscribeCmd captions a WAV file through the same pipeline as a live
// recording and saves the usual outputs.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Caption a WAV file and write TXT/SRT/TSV/VTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			name, _ := cmd.Flags().GetString("out")
			overwrite, _ := cmd.Flags().GetBool("overwrite")
			formatName, _ := cmd.Flags().GetString("format")
			var format subtitle.Format
			if formatName != "" {
				if format, err = subtitle.ParseFormat(formatName); err != nil {
					return err
				}
			}

			backend, err := asr.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			if err := waitReady(ctx, backend); err != nil {
				return err
			}

			show := printCaption(cmd.OutOrStdout())
			if format != "" {
				// stdout carries the rendered file; progress goes to stderr as plain text.
				stderr := cmd.ErrOrStderr()
				show = live.ShowText(live.SinkFunc(func(text string) { fmt.Fprintln(stderr, text) }))
			}
			opts := transcribeOptions{
				Name:    name,
				Confirm: session.Policy(cfg.Session.Overwrite, session.Prompt{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}),
				Show:    show,
			}
			if overwrite {
				opts.Confirm = session.Always
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

			res, err := transcribeFile(ctx, cfg, logger, backend, args[0], opts)
			if errors.Is(err, session.ErrOverwriteDeclined) {
				return fmt.Errorf("%w; pass --overwrite or choose another --out", err)
			}
			if err != nil {
				return err
			}
			if format == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %d captions to %s\n", res.Captions, res.Files.Audio)
				return nil
			}
			body, err := os.ReadFile(res.Files.For(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	cmd.Flags().StringP("out", "o", "", "output name (default: timestamped name in session.output_dir)")
	cmd.Flags().Bool("overwrite", false, "replace existing output files")
	cmd.Flags().StringP("format", "f", "", "print the saved txt, srt, tsv or vtt file to stdout")
	return cmd
}

type transcribeOptions struct {
	Name     string
	Confirm  session.Confirmer
	Show     live.Handler
	Hook     session.PostSave
	Archiver session.Archiver
}

// transcribeFile runs path to the end through a fresh controller. An
// interrupted run saves what was captioned so far.
func transcribeFile(ctx context.Context, cfg *config.Config, logger *logrus.Logger, backend asr.Backend, path string, o transcribeOptions) (*session.SaveResult, error) {
	src, err := audio.NewFileSource(path)
	if err != nil {
		return nil, err
	}
	rate, channels := src.Format()

	opts := session.OptionsFromConfig(cfg)
	opts.Backend = backend
	opts.Source = src
	opts.Device = path
	opts.SampleRate = rate
	opts.Channels = channels
	opts.Confirmer = o.Confirm
	opts.Hook = o.Hook
	opts.Archiver = o.Archiver

	queue := live.NewQueue()
	opts.Sink = queue
	var handlers []live.Handler
	if o.Show != nil {
		handlers = append(handlers, o.Show)
	}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		queue.Run(context.Background(), handlers...)
	}()
	defer func() {
		queue.Close()
		<-drained
	}()

	ctrl := session.New(opts, logger)
	if _, err := ctrl.Start(ctx, o.Name); err != nil {
		return nil, err
	}
	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		logger.Warn("interrupted; saving partial transcript")
	}
	res, err := ctrl.Stop(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: no audio", path)
	}
	return res, nil
}

// waitReady blocks until a local model has loaded.
func waitReady(ctx context.Context, backend asr.Backend) error {
	if w, ok := backend.(interface{ Wait(context.Context) error }); ok {
		return w.Wait(ctx)
	}
	if !backend.Ready() {
		return asr.ErrNotReady
	}
	return nil
}

func printCaption(w io.Writer) live.Handler {
	return func(rec caption.Record) {
		fmt.Fprintf(w, "[%s --> %s] %s\n", subtitle.FormatSRT(rec.Start), subtitle.FormatSRT(rec.End), rec.Text)
	}
}
