// Package statusapi exposes a small read-only HTTP status surface over the
// bridge's connection table and statistics, the bridge's analogue of the
// teacher's pkg/api.Server.
package statusapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/krisarmstrong/blebridge/pkg/bridge"
	"github.com/krisarmstrong/blebridge/pkg/conntable"
)

// DefaultRateLimit/DefaultBurst bound how many status requests a single
// remote IP can issue, mirroring the teacher's per-IP API rate limiter.
const (
	DefaultRateLimit rate.Limit = 20
	DefaultBurst     int        = 40
)

// rateLimiterEntry pairs a limiter with the time it was last touched, so
// cleanupStale can evict idle entries.
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter provides per-IP rate limiting for status requests.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	rate     rate.Limit
	burst    int
}

func newRateLimiter(r rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*rateLimiterEntry), rate: r, burst: burst}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()
	return limiter.Allow()
}

func (rl *rateLimiter) cleanupStale(threshold time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > threshold {
			delete(rl.limiters, ip)
		}
	}
}

// TransportKind names which host-stack transport variant is currently in
// use, for the /status response.
type TransportKind string

const (
	TransportRawSocket     TransportKind = "rawsocket"
	TransportObjectManager TransportKind = "objectmanager"
	TransportDryRun        TransportKind = "dry_run"
)

// Server is a read-only net/http status server over the live bridge state.
type Server struct {
	Table     *conntable.Table
	Stats     *bridge.Statistics
	Token     string
	Transport TransportKind
	DryRun    bool

	startTime time.Time
	limiter   *rateLimiter
	httpSrv   *http.Server
}

// New creates a Server. Call ListenAndServe to start it.
func New(table *conntable.Table, stats *bridge.Statistics, token string, transport TransportKind, dryRun bool) *Server {
	return &Server{
		Table:     table,
		Stats:     stats,
		Token:     token,
		Transport: transport,
		DryRun:    dryRun,
		startTime: time.Now(),
		limiter:   newRateLimiter(DefaultRateLimit, DefaultBurst),
	}
}

// ListenAndServe starts the HTTP listener on addr and blocks until
// Shutdown is called (returning http.ErrServerClosed) or a fatal error
// occurs. An empty addr disables the server entirely.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.auth(s.handleStatus))
	mux.HandleFunc("/connections", s.auth(s.handleConnections))

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.limiter.cleanupStale(time.Hour)
		}
	}()

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.allow(ip) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if s.Token != "" {
			token := r.Header.Get("Authorization")
			token = strings.TrimPrefix(token, "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusResponse struct {
	UptimeSeconds float64         `json:"uptime_seconds"`
	DryRun        bool            `json:"dry_run"`
	Transport     TransportKind   `json:"transport"`
	Connections   int             `json:"connections"`
	Statistics    bridge.Snapshot `json:"statistics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		DryRun:        s.DryRun,
		Transport:     s.Transport,
		Connections:   s.Table.Len(),
		Statistics:    s.Stats.Snapshot(),
	}
	writeJSON(w, resp)
}

type connectionView struct {
	Handle         uint16 `json:"handle"`
	AccessAddr     uint32 `json:"access_address"`
	CurrentChannel byte   `json:"current_channel"`
	TxSN           bool   `json:"tx_sn"`
	TxNESN         bool   `json:"tx_nesn"`
	RxSN           bool   `json:"rx_sn"`
	IsConnected    bool   `json:"is_connected"`
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	connections := s.Table.All()
	views := make([]connectionView, 0, len(connections))
	for _, c := range connections {
		views = append(views, connectionView{
			Handle:         c.Handle,
			AccessAddr:     c.AccessAddr,
			CurrentChannel: c.CurrentChannel,
			TxSN:           c.TxSN,
			TxNESN:         c.TxNESN,
			RxSN:           c.RxSN,
			IsConnected:    c.IsConnected,
		})
	}
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
