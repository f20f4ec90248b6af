package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.status.Status()
	code := http.StatusOK
	if !st.Connected {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"connected":  st.Connected,
		"wait_state": st.WaitState,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.cfg
	config := map[string]interface{}{
		"imap": map[string]interface{}{
			"server":       cfg.IMAP.Server,
			"port":         cfg.IMAP.Port,
			"security":     cfg.IMAP.Security,
			"username":     cfg.IMAP.Username,
			"source":       cfg.IMAP.Source,
			"destination":  cfg.IMAP.Destination,
			"wait_timeout": cfg.IMAP.WaitTimeout.Seconds(),
			// Don't expose password
		},
		"processor": map[string]interface{}{
			"type":    cfg.Processor.Type,
			"command": cfg.Processor.Command,
			"filter":  cfg.Processor.FilterFrom,
		},
		"retry": map[string]interface{}{
			"transient_pause": cfg.Retry.TransientPause.Seconds(),
			"reconnect_pause": cfg.Retry.ReconnectPause.Seconds(),
		},
		"recipients": cfg.Recipients,
	}

	writeJSON(w, http.StatusOK, config)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
