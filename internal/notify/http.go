package notify

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
)

const maxBody = 64 << 10

// Request is the JSON body of POST /notify.
type Request struct {
	Text     string `json:"text"`
	Markdown bool   `json:"markdown"`
}

// Handler returns the HTTP surface used by cron scripts:
// POST /notify (bearer token) and GET /healthz.
func Handler(n *Notifier, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(token))
		r.Post("/notify", func(w http.ResponseWriter, req *http.Request) {
			var body Request
			dec := json.NewDecoder(io.LimitReader(req.Body, maxBody))
			if err := dec.Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			err := n.Notify(req.Context(), body.Text, body.Markdown)
			switch {
			case err == nil:
				writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
			case errs.Is(err, errs.KindValidation):
				writeError(w, http.StatusBadRequest, "text is required")
			default:
				writeError(w, http.StatusBadGateway, "telegram send failed")
			}
		})
	})
	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if token == "" || subtle.ConstantTimeCompare(got, want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info(r.Context(), logger.CompNotify, "http.request",
			slog.String("op", r.Method+" "+r.URL.Path),
			slog.Int("http_code", ww.Status()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Server runs Handler on a bound listener.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Listen binds addr and starts serving h in the background.
func Listen(addr string, h http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.Configuration("notify.listen", err)
	}
	s := &Server{
		srv:  &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), logger.CompNotify, "http.serve", logger.ErrAttrs(err)...)
		}
	}()
	logger.Info(context.Background(), logger.CompNotify, "http.listen", slog.String("listen", ln.Addr().String()))
	return s, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
