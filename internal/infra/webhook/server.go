// internal/infra/webhook/server.go
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"explain_yourself_bot/internal/domain/moderation"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	secretHeader = "X-Webhook-Secret"

	defaultMaxBodyBytes = 1 << 20
	readTimeout         = 10 * time.Second
	writeTimeout        = 30 * time.Second
	idleTimeout         = 60 * time.Second
)

// Dispatcher receives the decoded platform events.
type Dispatcher interface {
	HandlePostCreate(ctx context.Context, ev moderation.PostCreated) error
	HandlePostDelete(ctx context.Context, ev moderation.PostDeleted) error
	HandleModAction(ctx context.Context, ev moderation.ModAction) error
	HandleFilter(ctx context.Context, ev moderation.PostFiltered) error
	HandleReply(ctx context.Context, ev moderation.InboundReply) error
}

// Server accepts platform events as JSON POSTs and hands them to the
// dispatcher synchronously. It also serves /healthz and /metrics.
type Server struct {
	addr         string
	secret       string
	maxBodyBytes int64
	dispatcher   Dispatcher
	logger       *logrus.Entry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

type Option func(*Server)

// WithSecret makes every event request carry the shared secret header.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = secret }
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

func NewServer(addr string, dispatcher Dispatcher, logger *logrus.Entry, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		maxBodyBytes: defaultMaxBodyBytes,
		dispatcher:   dispatcher,
		logger:       logger.WithField("component", "webhook"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/events/post-create", eventHandler(s, "post_create", validatePostCreated, s.dispatcher.HandlePostCreate))
	mux.HandleFunc("/events/post-delete", eventHandler(s, "post_delete", validatePostDeleted, s.dispatcher.HandlePostDelete))
	mux.HandleFunc("/events/filter", eventHandler(s, "filter", validatePostFiltered, s.dispatcher.HandleFilter))
	mux.HandleFunc("/events/reply", eventHandler(s, "reply", validateInboundReply, s.dispatcher.HandleReply))
	mux.HandleFunc("/events/mod-action", s.handleModAction)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("webhook server already started")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("webhook listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Webhook server stopped unexpectedly")
		}
	}(s.server)
	s.logger.WithField("addr", listener.Addr().String()).Info("Webhook server listening")
	return nil
}

// Shutdown waits for in-flight events to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// modActionPayload accepts either a normalized action (kind and target) or a
// raw mod log action name such as "removelink".
type modActionPayload struct {
	moderation.ModAction
	Action string `json:"action,omitempty"`
}

func (s *Server) handleModAction(w http.ResponseWriter, r *http.Request) {
	var p modActionPayload
	logCtx := s.logger.WithField("event", "mod_action")
	if !s.decode(w, r, &p, logCtx) {
		return
	}
	ev := p.ModAction
	if p.Action != "" {
		kind, target, ok := moderation.ParseModLogAction(p.Action)
		if !ok {
			logCtx.WithField("action", p.Action).Debug("Ignoring unwatched mod log action")
			writeJSON(w, http.StatusAccepted, statusResponse{Status: "ignored"})
			return
		}
		ev.Kind, ev.Target = kind, target
	}
	if err := validateModAction(ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.dispatch(w, logCtx, func() error { return s.dispatcher.HandleModAction(r.Context(), ev) })
}

func eventHandler[E any](s *Server, name string, validate func(E) error, handle func(context.Context, E) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev E
		logCtx := s.logger.WithField("event", name)
		if !s.decode(w, r, &ev, logCtx) {
			return
		}
		if err := validate(ev); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.dispatch(w, logCtx, func() error { return handle(r.Context(), ev) })
	}
}

// decode checks method and secret and unmarshals the body. It writes the
// error response itself and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, logCtx *logrus.Entry) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(s.secret)) != 1 {
		logCtx.WithField("remote_addr", r.RemoteAddr).Warn("Rejected event with bad secret")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	reader := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload exceeds limit"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read body"})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return false
	}
	return true
}

func (s *Server) dispatch(w http.ResponseWriter, logCtx *logrus.Entry, fn func() error) {
	if err := fn(); err != nil {
		logCtx.WithError(err).Error("Event processing failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "event processing failed"})
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
