package shell

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-transcriber/internal/observability"
	"github.com/lexiqai/interview-transcriber/internal/pipeline"
)

//go:embed web/index.html
var webFS embed.FS

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// The page is served from the same origin, so the default origin check applies
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Server exposes the shell over HTTP
type Server struct {
	shell   *Shell
	filters []string
	logger  zerolog.Logger
}

// NewServer creates the HTTP front end for s
func NewServer(s *Shell) *Server {
	return &Server{
		shell:   s,
		filters: AudioFilters,
		logger:  observability.WithComponent("http"),
	}
}

// Register adds the shell routes to mux
func (srv *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", srv.handleIndex)
	mux.HandleFunc("POST /api/run", srv.handleRun)
	mux.HandleFunc("POST /api/compress", srv.handleCompress)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /ws", srv.handleWS)
}

type presetView struct {
	Name  string
	Label string
}

type indexView struct {
	Presets []presetView
	Accept  string
	Status  Status
}

func (srv *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := indexView{Status: srv.shell.Status()}
	for _, p := range pipeline.Presets {
		view.Presets = append(view.Presets, presetView{Name: string(p), Label: p.Label()})
	}
	for i, f := range srv.filters {
		if i > 0 {
			view.Accept += ","
		}
		view.Accept += f[1:] // "*.mp3" -> ".mp3"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, view); err != nil {
		srv.logger.Error().Err(err).Msg("Failed to render page")
	}
}

type runResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
	Status   Status `json:"status"`
}

func (srv *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	preset, err := pipeline.ParsePreset(r.FormValue("preset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, runResponse{Error: err.Error(), Status: srv.shell.Status()})
		return
	}

	err = srv.shell.Start(r.Context(), preset, r.FormValue("path"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, runResponse{Accepted: true, Status: srv.shell.Status()})
	case errors.Is(err, ErrNoFile):
		writeJSON(w, http.StatusOK, runResponse{Status: srv.shell.Status()})
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, runResponse{Error: err.Error(), Status: srv.shell.Status()})
	default:
		writeJSON(w, http.StatusInternalServerError, runResponse{Error: err.Error(), Status: srv.shell.Status()})
	}
}

type compressResponse struct {
	Archive string `json:"archive,omitempty"`
	Files   int    `json:"files"`
	Error   string `json:"error,omitempty"`
	Status  Status `json:"status"`
}

func (srv *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	res, err := srv.shell.Compress(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, compressResponse{Archive: res.Path, Files: res.Count(), Status: srv.shell.Status()})
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusConflict, compressResponse{Error: err.Error(), Status: srv.shell.Status()})
	default:
		writeJSON(w, http.StatusInternalServerError, compressResponse{Error: err.Error(), Status: srv.shell.Status()})
	}
}

func (srv *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.shell.Status())
}

// handleWS streams status snapshots until the page goes away
func (srv *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := srv.shell.Subscribe()
	defer unsubscribe()

	// Reader: only needed to notice the close and answer pings
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case status, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				srv.logger.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
