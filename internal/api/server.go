// Package api exposes the assistant over a small JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"avt-guide/internal/assistant"
	"avt-guide/internal/chat"
	"avt-guide/internal/metrics"
)

const (
	clientCookie  = "avt_client"
	sessionCookie = "avt_session"
	clientHeader  = "X-Client-ID"
	sessionHeader = "X-Session-ID"
)

type ctxKeyLog struct{}

type Server struct {
	sessions      *assistant.Manager
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	defaultLocale string
}

func New(sessions *assistant.Manager, m *metrics.Metrics, defaultLocale string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{sessions: sessions, metrics: m, log: log, defaultLocale: defaultLocale}
}

// Handler wires all routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat", s.chatHandler).Methods(http.MethodPost)
	api.HandleFunc("/conversation", s.conversationHandler).Methods(http.MethodGet)
	api.HandleFunc("/conversation", s.resetHandler).Methods(http.MethodDelete)
	api.HandleFunc("/quota", s.quotaHandler).Methods(http.MethodGet)

	r.Use(s.logMiddleware)
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("api: listening")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.WithFields(logrus.Fields{
			"http.req.path":   r.URL.Path,
			"http.req.method": r.Method,
			"http.req.id":     uuid.NewString(),
		})
		ctx := context.WithValue(r.Context(), ctxKeyLog{}, log)
		next.ServeHTTP(w, r.WithContext(ctx))
		log.WithField("http.resp.took_ms", time.Since(start).Milliseconds()).Debug("request complete")
	})
}

func requestLog(r *http.Request) logrus.FieldLogger {
	if l, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return l
	}
	return logrus.StandardLogger()
}

// identity reads the client and session ids from headers or cookies and
// issues fresh ones when both are absent.
func identity(w http.ResponseWriter, r *http.Request, sessionOverride string) (clientID, sessionID string) {
	clientID = r.Header.Get(clientHeader)
	if clientID == "" {
		if c, err := r.Cookie(clientCookie); err == nil {
			clientID = c.Value
		}
	}
	if clientID == "" {
		clientID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name: clientCookie, Value: clientID, Path: "/",
			MaxAge: 365 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode,
		})
	}

	sessionID = sessionOverride
	if sessionID == "" {
		sessionID = r.Header.Get(sessionHeader)
	}
	if sessionID == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			sessionID = c.Value
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		// no MaxAge: the cookie lives as long as the browsing session
		http.SetCookie(w, &http.Cookie{
			Name: sessionCookie, Value: sessionID, Path: "/",
			HttpOnly: true, SameSite: http.SameSiteLaxMode,
		})
	}
	return clientID, sessionID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) locale(r *http.Request, requested string) string {
	if requested == "" {
		requested = r.URL.Query().Get("locale")
	}
	return chat.NormalizeLocale(requested, s.defaultLocale)
}
