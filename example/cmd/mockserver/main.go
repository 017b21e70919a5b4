// Standalone mock feed for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/pollstream tail -c example/streams.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock feed server starting on :9999")
	fmt.Println("  /feed    one text line per request, every 4th request fails with 503")
	fmt.Println("  /prices  JSON price quote that drifts between requests")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu    sync.Mutex
		count int
		price = 100.0
	)

	http.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()

		if n%4 == 0 {
			slog.Info("failing request", "request", n)
			http.Error(w, "feed temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "tick %d at %s\n", n, time.Now().Format(time.RFC3339))
	})

	http.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		mu.Lock()
		price += rand.Float64()*2 - 1
		quote := map[string]any{
			"symbol": r.URL.Query().Get("symbol"),
			"price":  price,
			"at":     time.Now().Format(time.RFC3339),
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(quote); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
