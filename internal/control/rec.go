package control

import (
	"encoding/json"
	"fmt"

	"livecap/internal/config"

	"github.com/spf13/cobra"
)

// NewRecCmd drives the daemon's recording session.
func NewRecCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rec",
		Short: "Start, stop and save recordings in the daemon",
	}
	cmd.AddCommand(newRecStartCmd(cfgPath))
	cmd.AddCommand(newRecStopCmd(cfgPath))
	cmd.AddCommand(newRecSaveCmd(cfgPath))
	status := NewStatusCmd(cfgPath)
	status.Short = "Show recording status"
	cmd.AddCommand(status)
	return cmd
}

func newRecStartCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start [name]",
		Short: "Start recording; name is used for the save after stop",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := Request{Op: OpStart}
			if len(args) == 1 {
				req.Name = args[0]
			}
			resp, err := send(*cfgPath, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recording (session %s)\n", resp.SessionID)
			return nil
		},
	}
}

func newRecStopCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and save",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(*cfgPath, Request{Op: OpStop})
			if err != nil {
				return err
			}
			return printSaved(cmd, resp)
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func newRecSaveCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [name]",
		Short: "Save a recording kept after a declined or failed save",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := Request{Op: OpSave}
			if len(args) == 1 {
				req.Name = args[0]
			}
			req.Overwrite, _ = cmd.Flags().GetBool("overwrite")
			resp, err := send(*cfgPath, req)
			if err != nil {
				return err
			}
			return printSaved(cmd, resp)
		},
	}
	cmd.Flags().Bool("overwrite", false, "replace existing files")
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func send(cfgPath string, req Request) (Response, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return Response{}, err
	}
	return Do(cfg.Paths.SocketPath, req)
}

func printSaved(cmd *cobra.Command, resp Response) error {
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
	}
	if resp.Saved == nil {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "saved %d captions, %.1fs of audio\n", resp.Saved.Captions, resp.Saved.Seconds)
	for _, p := range resp.Saved.Files.All() {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
