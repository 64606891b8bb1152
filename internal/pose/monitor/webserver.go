// Package monitor serves the HTTP status API and debug charts for a running
// pose session.
package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/posetrack/internal/db"
	"github.com/banshee-data/posetrack/internal/httputil"
	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks/network"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/banshee-data/posetrack/internal/pose/pipeline"
	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"github.com/banshee-data/posetrack/internal/pose/visualiser"
	"github.com/banshee-data/posetrack/internal/version"
)

// SessionSource is the live session the server reports on.
type SessionSource interface {
	ID() string
	Stats() pipeline.SessionStats
	Latest() (l4retarget.Snapshot, bool)
}

// SessionCatalog lists recorded sessions.
type SessionCatalog interface {
	ListSessions(limit int) ([]sqlite.Session, error)
	LoadRootTrace(sessionID string) ([]sqlite.RootSample, error)
}

// WebServerConfig contains configuration options for the web server. Every
// source is optional; endpoints without one report 404.
type WebServerConfig struct {
	Address        string
	Session        SessionSource
	PacketStats    func() network.PacketSnapshot
	PublisherStats func() visualiser.Stats
	Sessions       SessionCatalog
	DB             *db.DB
	Trace          *TraceBuffer
}

// WebServer handles the HTTP interface.
type WebServer struct {
	cfg    WebServerConfig
	server *http.Server
}

// NewWebServer builds the server and its routes.
func NewWebServer(cfg WebServerConfig) (*WebServer, error) {
	ws := &WebServer{cfg: cfg}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler.
func (ws *WebServer) Handler() http.Handler { return ws.server.Handler }

// Start serves until ctx is cancelled, then shuts down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		pose.Opsf("monitor: HTTP server listening on %s", ws.cfg.Address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		pose.Opsf("monitor: HTTP server shutdown error: %v", err)
		ws.server.Close()
	}
	<-errCh
	pose.Opsf("monitor: HTTP server stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httputil.GetOnly(ws.handleHealth))
	mux.HandleFunc("/api/pose/status", httputil.GetOnly(ws.handleStatus))
	mux.HandleFunc("/api/pose/skeleton", httputil.GetOnly(ws.handleSkeleton))
	mux.HandleFunc("/api/pose/trace", httputil.GetOnly(ws.handleTrace))
	mux.HandleFunc("/api/pose/sessions", httputil.GetOnly(ws.handleSessions))
	mux.HandleFunc("/debug/pose/trace", httputil.GetOnly(ws.handleTraceChart))
	mux.HandleFunc("/debug/pose/root.png", httputil.GetOnly(ws.handleRootPlot))
	if ws.cfg.DB != nil {
		if err := ws.cfg.DB.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// StatusResponse is the body of /api/pose/status.
type StatusResponse struct {
	Version    version.Info            `json:"version"`
	Session    *pipeline.SessionStats  `json:"session,omitempty"`
	Listener   *network.PacketSnapshot `json:"listener,omitempty"`
	Visualiser *visualiser.Stats       `json:"visualiser,omitempty"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Version: version.Get()}
	if ws.cfg.Session != nil {
		st := ws.cfg.Session.Stats()
		resp.Session = &st
	}
	if ws.cfg.PacketStats != nil {
		ps := ws.cfg.PacketStats()
		resp.Listener = &ps
	}
	if ws.cfg.PublisherStats != nil {
		vs := ws.cfg.PublisherStats()
		resp.Visualiser = &vs
	}
	httputil.WriteJSONOK(w, resp)
}

// JointPose is one joint's world rotation as (x, y, z, w), the order used
// by rig files.
type JointPose struct {
	Joint    string     `json:"joint"`
	Rotation [4]float64 `json:"rotation"`
}

// SkeletonResponse is the body of /api/pose/skeleton.
type SkeletonResponse struct {
	SessionID string      `json:"session_id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Root      [3]float64  `json:"root"`
	Forward   [3]float64  `json:"forward"`
	Joints    []JointPose `json:"joints"`
}

func (ws *WebServer) handleSkeleton(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Session == nil {
		httputil.NotFound(w, "no live session")
		return
	}
	snap, ok := ws.cfg.Session.Latest()
	if !ok {
		httputil.NotFound(w, "no frame processed yet")
		return
	}
	resp := SkeletonResponse{
		SessionID: snap.SessionID,
		Seq:       snap.Seq,
		Timestamp: snap.Timestamp,
		Root:      [3]float64{snap.RootPosition.X, snap.RootPosition.Y, snap.RootPosition.Z},
		Forward:   [3]float64{snap.Forward.X, snap.Forward.Y, snap.Forward.Z},
		Joints:    make([]JointPose, 0, l2joints.Count),
	}
	for j, q := range snap.Rotations {
		resp.Joints = append(resp.Joints, JointPose{
			Joint:    l2joints.JointID(j).String(),
			Rotation: [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real},
		})
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleTrace(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Trace == nil {
		httputil.NotFound(w, "trace not enabled")
		return
	}
	httputil.WriteJSONOK(w, ws.cfg.Trace.Samples())
}

func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Sessions == nil {
		httputil.NotFound(w, "recording not enabled")
		return
	}
	limit, ok := httputil.QueryInt(r, "limit", 20, 1, 500)
	if !ok {
		httputil.BadRequest(w, "limit must be between 1 and 500")
		return
	}
	sessions, err := ws.cfg.Sessions.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sessions == nil {
		sessions = []sqlite.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (ws *WebServer) handleRootPlot(w http.ResponseWriter, r *http.Request) {
	if ws.cfg.Sessions == nil {
		httputil.NotFound(w, "recording not enabled")
		return
	}
	id := r.URL.Query().Get("session_id")
	if id == "" && ws.cfg.Session != nil {
		id = ws.cfg.Session.ID()
	}
	if id == "" {
		httputil.BadRequest(w, "missing 'session_id' parameter")
		return
	}
	samples, err := ws.cfg.Sessions.LoadRootTrace(id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(samples) == 0 {
		httputil.NotFound(w, "session has no frames")
		return
	}

	var buf bytes.Buffer
	if err := PlotRootTrace(&buf, "Root trajectory "+id, samples); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
