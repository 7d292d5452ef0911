package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/zeru/price-oracle/internal/models"
)

const maxQueryLimit = 100

var validNetworks = map[string]bool{
	"ethereum": true,
	"polygon":  true,
}

// Resolver answers point-in-time price queries.
type Resolver interface {
	Resolve(ctx context.Context, q models.PriceQuery) (*models.PriceResult, error)
}

// HistorySource reads a token's persisted daily history.
type HistorySource interface {
	History(ctx context.Context, token, network string) ([]models.PricePoint, error)
}

// Jobs is the backfill job surface the API exposes.
type Jobs interface {
	Enqueue(ctx context.Context, token, network string) (*models.BackfillJob, error)
	Get(ctx context.Context, id string) (*models.BackfillJob, error)
	List(ctx context.Context, page, limit int) ([]models.BackfillJob, error)
	RequestCancel(ctx context.Context, id string) (*models.BackfillJob, error)
}

type Server struct {
	pool       *pgxpool.Pool
	rdb        *redis.Client
	resolver   Resolver
	history    HistorySource
	jobs       Jobs
	httpServer *http.Server
	apiKey     string
}

func NewServer(pool *pgxpool.Pool, rdb *redis.Client, resolver Resolver, history HistorySource, jobs Jobs, port int, apiKey, corsOrigin string) *Server {
	s := &Server{
		pool:     pool,
		rdb:      rdb,
		resolver: resolver,
		history:  history,
		jobs:     jobs,
		apiKey:   apiKey,
	}

	mux := http.NewServeMux()

	// Price routes
	mux.HandleFunc("POST /api/price", s.handlePrice)
	mux.HandleFunc("POST /api/price-history", s.handlePriceHistory)

	// Backfill job routes
	mux.HandleFunc("POST /api/schedule", s.handleSchedule)
	mux.HandleFunc("GET /api/status/{jobId}", s.handleJobStatus)
	mux.HandleFunc("GET /api/jobs", s.handleJobList)
	mux.HandleFunc("DELETE /api/stop/{jobId}", s.handleJobStop)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.authMiddleware(corsMiddleware(mux, corsOrigin))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

// validatePair rejects requests before they reach the resolver or queue.
// Token addresses are normalized to lowercase so a checksummed address and
// its lowercase form share cache and storage keys.
func validatePair(token, network string) (string, string, string) {
	token = strings.ToLower(strings.TrimSpace(token))
	network = strings.ToLower(strings.TrimSpace(network))

	if token == "" {
		return "", "", "token address is required"
	}
	if !strings.HasPrefix(token, "0x") || len(token) != 42 {
		return "", "", "token must be a 0x-prefixed 40-hex-char address"
	}
	if !validNetworks[network] {
		return "", "", "network must be one of: ethereum, polygon"
	}
	return token, network, ""
}

func parsePositiveInt(r *http.Request, key string, defaultVal, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
