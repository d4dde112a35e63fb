package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/studycoach/agent"
	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/logging"
	"github.com/hupe1980/studycoach/retrieval"
)

// TurnRunner starts and cancels turns (runner.Runner).
type TurnRunner interface {
	Run(ctx context.Context, sessionID, input string) (string, iter.Seq[agent.Snapshot], error)
	Cancel(runID string) error
}

// DocumentIndexer indexes uploaded documents (retrieval.Indexer).
type DocumentIndexer interface {
	IndexReader(ctx context.Context, name string, r io.Reader) (int, error)
}

// Options configures a Server.
type Options struct {
	// IndexStatus is reported by /healthz when set.
	IndexStatus func(ctx context.Context) core.IndexReadiness
	// MaxUploadBytes bounds document uploads.
	MaxUploadBytes int64
	// WriteTimeout bounds a single websocket frame write.
	WriteTimeout time.Duration
	// CheckOrigin overrides the websocket origin check.
	CheckOrigin func(r *http.Request) bool
	Logger      logging.Logger
}

// Server is the HTTP and websocket front end.
type Server struct {
	runner   TurnRunner
	indexer  DocumentIndexer
	opts     Options
	upgrader websocket.Upgrader
	server   *http.Server
	mu       sync.Mutex
}

// New creates a server.
func New(runner TurnRunner, indexer DocumentIndexer, optFns ...func(o *Options)) *Server {
	opts := Options{
		MaxUploadBytes: 10 << 20,
		WriteTimeout:   10 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		runner:  runner,
		indexer: indexer,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /documents", s.handleDocuments)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withLogging(mux)
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.opts.Logger.Info("server.start", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.opts.Logger.Debug("server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "healthy"}
	if s.opts.IndexStatus != nil {
		body["index"] = string(s.opts.IndexStatus(r.Context()))
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "expected multipart field \"file\": "+err.Error())
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	n, err := s.indexer.IndexReader(r.Context(), name, file)
	switch {
	case errors.Is(err, retrieval.ErrUnsupportedFormat):
		s.errorResponse(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, retrieval.ErrEmptyDocument), errors.Is(err, retrieval.ErrUnreadableDocument):
		s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.opts.Logger.Error("server.documents.index_failed", "source", name, "error", err.Error())
		s.errorResponse(w, http.StatusInternalServerError, "indexing failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"source": name, "chunks": n})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = core.NewID()
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn("server.ws.upgrade_failed", "error", err.Error())
		return
	}
	c := &wsConn{conn: conn, timeout: s.opts.WriteTimeout}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	log := s.opts.Logger

	if err := c.write(Frame{Type: "session", SessionID: sessionID}); err != nil {
		cancel()
		return
	}
	log.Info("server.ws.connected", "session_id", sessionID)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		activeRun string
	)
	defer wg.Wait()
	defer cancel()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("server.ws.read_failed", "session_id", sessionID, "error", err.Error())
			}
			return
		}

		switch msg.Type {
		case "message":
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				_ = c.write(errorFrame("message content must not be empty"))
				continue
			}
			mu.Lock()
			busy := activeRun != ""
			mu.Unlock()
			if busy {
				_ = c.write(errorFrame("a turn is already running"))
				continue
			}

			runID, seq, err := s.runner.Run(ctx, sessionID, content)
			if err != nil {
				_ = c.write(errorFrame(err.Error()))
				continue
			}
			mu.Lock()
			activeRun = runID
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					mu.Lock()
					activeRun = ""
					mu.Unlock()
				}()
				for snap := range seq {
					if err := c.write(snapshotFrame(runID, snap)); err != nil {
						log.Debug("server.ws.write_failed", "run_id", runID, "error", err.Error())
						break
					}
				}
			}()

		case "cancel":
			mu.Lock()
			id := activeRun
			mu.Unlock()
			if id == "" {
				_ = c.write(errorFrame("no turn is running"))
				continue
			}
			if err := s.runner.Cancel(id); err != nil {
				_ = c.write(errorFrame(err.Error()))
			}

		case "ping":
			_ = c.write(Frame{Type: "pong"})

		default:
			_ = c.write(errorFrame("unknown message type " + msg.Type))
		}
	}
}

// wsConn serialises writes; gorilla connections support one concurrent writer.
type wsConn struct {
	conn    *websocket.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *wsConn) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.conn.WriteJSON(f)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Debug("server.write_json_failed", "error", err.Error())
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	})
}

func kindOf(err error) string {
	return core.KindOf(err).String()
}
