package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// StartMockFeedServer runs a mock feed that answers every request with one
// line of text. Every fourth request fails with 503 so that error events
// show up alongside data.
// Call this in a goroutine before creating streams.
func StartMockFeedServer(addr string) {
	var (
		mu    sync.Mutex
		count int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()

		if n%4 == 0 {
			http.Error(w, "feed temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "tick %d at %s\n", n, time.Now().Format(time.RFC3339))
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
