package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// handleJournalSSE streams journal entries as server-sent events, each
// framed as a named "entry" event. Query params: history_len (history
// length, default 100), unit (optional systemd unit filter).
func (s *Server) handleJournalSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	historyLen := 100
	if n := r.URL.Query().Get("history_len"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			historyLen = v
		}
	}
	unit := r.URL.Query().Get("unit")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := s.journal.Stream(r.Context(), historyLen, unit, func(entry json.RawMessage) {
		fmt.Fprintf(w, "event: entry\ndata: %s\n\n", entry)
		flusher.Flush()
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("journal stream ended")
	}
}
