package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amun/limavault/internal/logger"
	"github.com/amun/limavault/internal/nav"
	"github.com/amun/limavault/internal/rebalance"
	"github.com/amun/limavault/internal/registry"
	"github.com/amun/limavault/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles read-only HTTP requests for vault data
type WebServer struct {
	router  *mux.Router
	port    string
	reg     *registry.Registry
	engine  *nav.Engine
	machine *rebalance.Machine
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, reg *registry.Registry, engine *nav.Engine, machine *rebalance.Machine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		reg:     reg,
		engine:  engine,
		machine: machine,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// Prometheus metrics
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault/summary", ws.handleGetVaultSummary).Methods("GET")
	api.HandleFunc("/rebalances", ws.handleGetRebalances).Methods("GET")
	api.HandleFunc("/rebalances/stats", ws.handleGetRebalanceStats).Methods("GET")
	api.HandleFunc("/rebalances/{number}", ws.handleGetRebalance).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	phase := ws.machine.Phase()
	var pendingFor float64
	if since, pending := ws.machine.PendingSince(); pending {
		pendingFor = time.Since(since).Seconds()
		// A request stuck past a full interval means the oracle round-trip
		// is not coming back on its own.
		if time.Since(since) > ws.reg.RebalanceInterval() {
			hasErrors = true
		}
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "limavault",
			"version": "1.0.0",
		},
		"vault_status": map[string]interface{}{
			"database_healthy":    dbHealthy,
			"paused":              ws.reg.Paused(),
			"rebalance_phase":     phase,
			"pending_for_seconds": pendingFor,
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaultSummary returns live vault accounting figures
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	summary := map[string]interface{}{
		"current_underlying":        ws.reg.CurrentUnderlying().String(),
		"underlying_assets":         len(ws.reg.UnderlyingAssets()),
		"total_managed_value":       ws.engine.TotalManagedValue().String(),
		"share_supply":              ws.engine.TotalSupply().String(),
		"value_per_thousand_shares": ws.engine.ValuePerShare(sdkmath.NewInt(1000)).String(),
		"restricted":                ws.reg.RestrictedMode(),
		"paused":                    ws.reg.Paused(),
		"rebalance_phase":           ws.machine.Phase(),
		"last_rebalance":            ws.reg.LastRebalanceTime().UTC().Format(time.RFC3339),
		"timestamp":                 time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetRebalances returns paginated rebalance history
func (ws *WebServer) handleGetRebalances(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentRebalances(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent rebalances")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalances")
		return
	}

	response := map[string]interface{}{
		"rebalances": snapshots,
		"count":      len(snapshots),
		"limit":      limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRebalance returns a specific rebalance by number
func (ws *WebServer) handleGetRebalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	numberStr := vars["number"]

	number, err := strconv.Atoi(numberStr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid rebalance number")
		return
	}

	snapshot, err := state.GetRebalanceByNumber(number)
	if err != nil {
		webLogger.Error().Err(err).Int("number", number).Msg("Failed to get rebalance")
		ws.writeErrorResponse(w, http.StatusNotFound, "Rebalance not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleGetRebalanceStats returns aggregated rebalance history data
func (ws *WebServer) handleGetRebalanceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := state.GetRebalanceStats()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get rebalance stats")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalance stats")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, stats)
}

// handleGetParameters returns the live fee and cadence parameters
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"parameters": map[string]interface{}{
			"mint_fee_bps":        ws.reg.MintFeeBps(),
			"burn_fee_bps":        ws.reg.BurnFeeBps(),
			"performance_fee_bps": ws.reg.PerformanceFeeBps(),
			"rebalance_interval":  ws.reg.RebalanceInterval().String(),
			"fee_recipient":       ws.reg.FeeRecipient().String(),
		},
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
