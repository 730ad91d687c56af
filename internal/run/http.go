package run

import (
	"errors"
	"net/http"
)

// muxes groups the HTTP endpoints by listen address. Metrics and the live
// feed share one server when configured on the same address.
func (s *Server) muxes() map[string]*http.ServeMux {
	out := map[string]*http.ServeMux{}
	get := func(addr string) *http.ServeMux {
		if mux, ok := out[addr]; ok {
			return mux
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", s.healthz)
		out[addr] = mux
		return mux
	}
	if s.cfg.Metrics.Enabled {
		get(s.cfg.Metrics.Addr).Handle("/metrics", s.metrics.Handler())
	}
	if s.cfg.Live.Enabled {
		get(s.cfg.Live.Addr).Handle("/ws", s.hub)
	}
	return out
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if !s.backend.Ready() {
		http.Error(w, "backend not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) httpServe(ctxDone <-chan struct{}, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	s.logger.Infof("http listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("http server %s: %v", addr, err)
	}
}
