package control

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"livecap/internal/asr"
	"livecap/internal/config"
	"livecap/internal/logging"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// NewServeRPCCmd exposes the configured backend to other machines over gRPC.
func NewServeRPCCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-rpc",
		Short: "Serve the configured transcription backend over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.RPC.ListenAddr = addr
			}
			if kind, _ := cmd.Flags().GetString("backend"); kind != "" {
				cfg.Backend.Kind = strings.ToLower(kind)
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if cfg.Backend.Kind == config.BackendRPC {
				return fmt.Errorf("backend.kind is grpc; choose the backend to serve with --backend or LIVECAP_BACKEND")
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			backend, err := asr.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			if err := waitReady(ctx, backend); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.RPC.ListenAddr)
			if err != nil {
				return err
			}
			srv := grpc.NewServer()
			asr.RegisterServer(srv, backend)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			defer signal.Stop(sigCh)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				s := <-sigCh
				logger.Infof("received signal %s, draining", s)
				srv.GracefulStop()
			}()

			logger.Infof("serving %s backend on %s", backend.Name(), ln.Addr())
			fmt.Fprintf(cmd.OutOrStdout(), "serving %s backend on %s\n", backend.Name(), ln.Addr())
			err = srv.Serve(ln)
			if err == nil {
				// Serve returns once draining starts; in-flight calls still use the backend.
				<-drained
			}
			return err
		},
	}
	cmd.Flags().String("listen", "", "listen address (default rpc.listen_addr)")
	cmd.Flags().String("backend", "", "backend to serve: whisper, http or google (default backend.kind)")
	return cmd
}
