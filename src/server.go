// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	errs "codeforge/src/errors"
	"codeforge/src/logging"
	"codeforge/src/model"
	"codeforge/src/processor"
)

const serviceName = "codeforge"

// StatusResponse for JSON output
type StatusResponse struct {
	ID                 string    `json:"id"`
	StartTime          time.Time `json:"start_time"`
	Uptime             string    `json:"uptime"`
	RequestsProcessed  uint64    `json:"requests_processed"`
	RequestsSuccessful uint64    `json:"requests_successful"`
	RequestsFailed     uint64    `json:"requests_failed"`
	Builds             uint64    `json:"builds"`
	Revisions          uint64    `json:"revisions"`
}

// ServiceStats tracks the internal state of the service
type ServiceStats struct {
	mu             sync.RWMutex
	statusResponse StatusResponse
}

func NewServiceStats(id string) *ServiceStats {
	return &ServiceStats{
		statusResponse: StatusResponse{
			ID:        id,
			StartTime: time.Now(),
		},
	}
}

// UpdateStats updates the service statistics
func (s *ServiceStats) UpdateStats(processed, success, failed uint64, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusResponse.RequestsProcessed += processed
	s.statusResponse.RequestsSuccessful += success
	s.statusResponse.RequestsFailed += failed
	if success > 0 {
		switch round {
		case 1:
			s.statusResponse.Builds++
		case 2:
			s.statusResponse.Revisions++
		}
	}

	logging.UpdateSpanValue("service_requests_total", float64(s.statusResponse.RequestsProcessed))
	logging.UpdateSpanValue("service_requests_succeeded", float64(s.statusResponse.RequestsSuccessful))
	logging.UpdateSpanValue("service_requests_failed", float64(s.statusResponse.RequestsFailed))
	logging.UpdateSpanValue("service_builds_total", float64(s.statusResponse.Builds))
	logging.UpdateSpanValue("service_revisions_total", float64(s.statusResponse.Revisions))
}

// GetStats returns the current statistics as a response struct
func (s *ServiceStats) GetStats() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := s.statusResponse
	resp.Uptime = time.Since(s.statusResponse.StartTime).Truncate(time.Second).String()
	return resp
}

// requestProcessor is what the transport layer needs from the orchestrator.
type requestProcessor interface {
	Process(ctx context.Context, req *model.TaskRequest) (processor.Result, error)
}

// APIServer holds dependencies for the HTTP handlers
type APIServer struct {
	processor requestProcessor
	stats     *ServiceStats
	secret    string
	initError string // non-empty when a collaborator client failed to initialize
}

func NewAPIServer(proc requestProcessor, stats *ServiceStats, secret, initError string) *APIServer {
	return &APIServer{
		processor: proc,
		stats:     stats,
		secret:    secret,
		initError: initError,
	}
}

func (s *APIServer) ready() bool {
	return s.initError == "" && s.processor != nil
}

// Handler builds the routed, instrumented handler for the service.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate-code", s.generateCodeHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /status", s.statusHandler)

	// CRITICAL: We must use the returned handler from otelhttp.NewHandler
	return otelhttp.NewHandler(mux, serviceName+"-api-server")
}

// StartAPIServer starts the HTTP server with graceful shutdown and OTel
func StartAPIServer(port string, srv *APIServer) error {
	// 1. Setup Context for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Setup OpenTelemetry
	otelShutdown, err := logging.SetupOTelSDK(context.Background())
	if err != nil {
		return fmt.Errorf("failed to setup OTel SDK: %w", err)
	}
	defer func() {
		// Ensure OTel flushes spans before exiting
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "OTel shutdown error: %v\n", err)
		}
	}()

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: srv.Handler(),
	}

	// 3. Run Server in Background
	serverErr := make(chan error, 1)
	go func() {
		fmt.Printf("API Server starting on :%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 4. Wait for Shutdown Signal or Error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		fmt.Println("\nShutdown signal received, closing server...")

		// Gracefully shut down the HTTP server (max 10s timeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		fmt.Println("Server exited cleanly")
	}

	return nil
}

func (s *APIServer) generateCodeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.ready() {
		writeDetail(w, http.StatusServiceUnavailable,
			"Service not fully initialized. Check server logs for missing API keys.")
		return
	}

	var req model.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Shared-secret check is skipped when no secret is configured. Dev-mode
	// behavior only; production deployments must set WEBHOOK_SECRET.
	if s.secret != "" && req.Secret != s.secret {
		s.stats.UpdateStats(1, 0, 1, req.Round)
		writeDetail(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	requestID := uuid.New().String()
	logging.Log(fmt.Sprintf("Request %s: task %s, round %d", requestID, req.Task, req.Round), slog.LevelInfo)

	result, err := s.processor.Process(r.Context(), &req)
	if err != nil {
		s.stats.UpdateStats(1, 0, 1, req.Round)
		logging.Log(fmt.Sprintf("Request %s failed: %v", requestID, err), slog.LevelError)
		writeDetail(w, statusForError(err), "Failed to process request: "+err.Error())
		return
	}

	s.stats.UpdateStats(1, 1, 0, req.Round)

	commitURL := result.PagesURL
	if commitURL == "" {
		commitURL = result.RepoURL
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "success",
		"message":        result.Message,
		"commit_url":     commitURL,
		"evaluation_url": req.EvaluationURL,
	})
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "degraded",
			"service": serviceName,
			"detail":  s.initError,
		})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.stats.GetStats())
}

// statusForError maps internal error codes to transport status codes. The
// raw error text is always surfaced to the caller.
func statusForError(err error) int {
	switch errs.CodeOf(err) {
	case errs.ValidationFailed, errs.InvalidInput:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
