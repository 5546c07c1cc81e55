// Package monitor serves the read-only HTTP surface for a running
// follow session: JSON state for UIs, a debug chart of the track and
// trail, and the single allowed mutation, the lane-offset control.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/pilot/internal/follower"
	"github.com/banshee-data/pilot/internal/pose"
	"github.com/banshee-data/pilot/internal/robot"
	"github.com/banshee-data/pilot/internal/track"
	"github.com/banshee-data/pilot/internal/version"
)

// trailCap bounds the in-memory trail kept for the debug chart.
const trailCap = 4096

// Server exposes the monitoring endpoints for one robot's session.
type Server struct {
	address string
	robotID string
	tr      *track.Track
	f       *follower.Follower
	rob     robot.Robot
	server  *http.Server

	trailMu sync.Mutex
	trail   []pose.Pose
}

// ServerConfig contains configuration options for the monitor server.
type ServerConfig struct {
	Address string
	RobotID string
	Track   *track.Track
	Flw     *follower.Follower
	Robot   robot.Robot
}

// NewServer creates a monitor server with the provided configuration.
func NewServer(config ServerConfig) *Server {
	s := &Server{
		address: config.Address,
		robotID: config.RobotID,
		tr:      config.Track,
		f:       config.Flw,
		rob:     config.Robot,
	}
	s.server = &http.Server{
		Addr:    s.address,
		Handler: LoggingMiddleware(s.ServeMux()),
	}
	return s
}

// ServeMux configures the HTTP routes and handlers.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/offset", s.handleOffset)
	mux.HandleFunc("/debug/track", s.handleTrackChart)
	return mux
}

// Start begins the HTTP server and blocks until ctx is cancelled, then
// shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting monitor server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("monitor server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down monitor server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("monitor server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("monitor server force close error: %v", err)
		}
	}
	return nil
}

// AppendTrail records a pose for the debug chart. The control loop calls
// this once per tick; old samples are dropped once the buffer is full.
func (s *Server) AppendTrail(p pose.Pose) {
	s.trailMu.Lock()
	defer s.trailMu.Unlock()
	s.trail = append(s.trail, p)
	if len(s.trail) > trailCap {
		s.trail = s.trail[len(s.trail)-trailCap:]
	}
}

func (s *Server) trailSnapshot() []pose.Pose {
	s.trailMu.Lock()
	defer s.trailMu.Unlock()
	out := make([]pose.Pose, len(s.trail))
	copy(out, s.trail)
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "pilot", "version": %q, "git_sha": %q, "timestamp": %q}`,
		version.Version, version.GitSHA, time.Now().UTC().Format(time.RFC3339))
}

type stateResponse struct {
	RobotID   string  `json:"robot_id"`
	State     string  `json:"state"`
	Offset    float64 `json:"offset"`
	TrackName string  `json:"track_name"`
	Closed    bool    `json:"closed"`
	PoseKnown bool    `json:"pose_known"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Yaw       float64 `json:"yaw"`
	LastDX    float64 `json:"last_dx"`
	LastDY    float64 `json:"last_dy"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		RobotID:   s.robotID,
		State:     string(s.f.State()),
		Offset:    s.f.Offset(),
		TrackName: s.tr.Name(),
		Closed:    s.tr.Closed(),
	}
	if p, ok := s.rob.Pose(); ok {
		resp.PoseKnown = true
		resp.X, resp.Y, resp.Yaw = p.X, p.Y, p.Yaw
	}
	resp.LastDX, resp.LastDY = s.rob.LastCommand()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode state response: %v", err)
	}
}

// handleOffset changes the lane offset. This is the one mutation the
// monitor allows; the follower clamps and applies it on its next tick.
func (s *Server) handleOffset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := strconv.ParseFloat(r.FormValue("offset"), 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("bad offset value: %v", err), http.StatusBadRequest)
		return
	}
	s.f.SetOffset(v)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"offset": %g}`, s.f.Offset())
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%d] %s %s %vms",
			lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
