package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	sqlite "github.com/banshee-data/echo.sim/internal/echo/storage/sqlite"
)

// WebServer handles the HTTP interface for inspecting simulation output.
// It provides endpoints for health checks, run history, and debug charts
// of the most recent batch of simulated lines.
type WebServer struct {
	address string
	runs    *sqlite.RunStore
	server  *http.Server

	mu                sync.Mutex
	lines             [][]complex128
	samplingFrequency float64
	radialDecimation  int
	timings           map[string][]float64
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Runs    *sqlite.RunStore
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		runs:    config.Runs,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SetResult caches the most recent batch of simulated lines for the debug
// chart endpoints.
func (ws *WebServer) SetResult(lines [][]complex128, samplingFrequency float64, radialDecimation int) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.lines = lines
	ws.samplingFrequency = samplingFrequency
	if radialDecimation < 1 {
		radialDecimation = 1
	}
	ws.radialDecimation = radialDecimation
}

// SetTimings caches per-stage kernel timing telemetry for the timings chart.
func (ws *WebServer) SetTimings(timings map[string][]float64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.timings = timings
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/run", ws.handleRun)
	mux.HandleFunc("/debug/lines/chart", ws.handleLinesChart)
	mux.HandleFunc("/debug/timings/chart", ws.handleTimingsChart)

	return mux
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "echosim", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleRuns returns a JSON array of recent simulation runs.
// Query params:
//
//	limit (optional, default 20)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.runs == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured for run lookup")
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit <= 0 || limit > 100 {
			limit = 20
		}
	}
	runs, err := ws.runs.ListRuns(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// handleRun returns the full record for a single run.
// Query params:
//
//	run_id (required)
func (ws *WebServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.runs == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured for run lookup")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return
	}
	rec, err := ws.runs.GetRun(runID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return
	}
	if rec == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no run found for run_id")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
