package control

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"livecap/internal/config"
	"livecap/internal/history"
	"livecap/internal/subtitle"

	"github.com/spf13/cobra"
)

// NewHistoryCmd browses the archive of saved sessions.
func NewHistoryCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved sessions",
	}
	cmd.AddCommand(newHistoryListCmd(cfgPath))
	cmd.AddCommand(newHistoryShowCmd(cfgPath))
	return cmd
}

func openHistory(cfgPath string) (*history.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (history.enabled = false)")
	}
	return history.Open(cfg.History.Path)
}

func newHistoryListCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(*cfgPath)
			if err != nil {
				return err
			}
			defer store.Close()
			limit, _ := cmd.Flags().GetInt("limit")
			sessions, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(sessions)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSAVED\tLENGTH\tCAPTIONS\tAUDIO")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%.0fs\t%d\t%s\n", shortID(s.ID), s.Saved.Format("2006-01-02 15:04"), s.Seconds, s.Captions, s.Audio)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of sessions")
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newHistoryShowCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id-prefix>",
		Short: "Print an archived session's captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			format, err := subtitle.ParseFormat(formatName)
			if err != nil {
				return err
			}
			store, err := openHistory(*cfgPath)
			if err != nil {
				return err
			}
			defer store.Close()
			_, recs, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			body, err := subtitle.Render(format, recs)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), body)
			if format == subtitle.TXT && body != "" {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "srt", "txt, srt, tsv or vtt")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
