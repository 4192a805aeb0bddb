package web

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/katha/internal/config"
	"github.com/hpungsan/katha/internal/logging"
	"github.com/hpungsan/katha/internal/ops"
	"github.com/hpungsan/katha/internal/storage"
)

// Deps are the collaborators the HTTP surface serves.
type Deps struct {
	DB          *sql.DB
	Cfg         *config.Config
	Publisher   *ops.Publisher
	Blob        storage.Blob
	Transcriber ops.Transcriber
	Polisher    ops.Polisher
	Metadata    ops.MetadataExtractor
	Prompts     ops.PromptSuggester
	Logger      *slog.Logger
}

// NewServer creates the HTTP server for the Katha API.
func NewServer(d Deps) *http.Server {
	return &http.Server{
		Addr:              d.Cfg.Addr,
		Handler:           NewHandler(d),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler with middleware applied.
func NewHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	h := &Handlers{
		db:          d.DB,
		cfg:         d.Cfg,
		publisher:   d.Publisher,
		blob:        d.Blob,
		transcriber: d.Transcriber,
		polisher:    d.Polisher,
		metadata:    d.Metadata,
		prompts:     d.Prompts,
		logger:      d.Logger.With(slog.String(logging.FieldComponent, "web")),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.HandleFunc("GET /v1/profile", h.authed(h.HandleGetProfile))
	mux.HandleFunc("PUT /v1/profile", h.authed(h.HandlePutProfile))
	mux.HandleFunc("POST /v1/families", h.authed(h.HandleCreateFamily))
	mux.HandleFunc("POST /v1/families/join", h.authed(h.HandleJoinFamily))
	mux.HandleFunc("GET /v1/family", h.authed(h.HandleGetFamily))
	mux.HandleFunc("GET /v1/family/members", h.authed(h.HandleFamilyMembers))
	mux.HandleFunc("GET /v1/children", h.authed(h.HandleListChildren))
	mux.HandleFunc("POST /v1/children", h.authed(h.HandleAddChild))
	mux.HandleFunc("POST /v1/capsules", h.authed(h.HandlePublish))
	mux.HandleFunc("PUT /v1/drafts", h.authed(h.HandleSaveDraft))
	mux.HandleFunc("GET /v1/feed", h.authed(h.HandleFeed))
	mux.HandleFunc("GET /v1/capsules/{id}", h.authed(h.HandleView))
	mux.HandleFunc("POST /v1/capsules/{id}/unlock", h.authed(h.HandleUnlock))
	mux.HandleFunc("GET /v1/writers/{id}/capsules", h.authed(h.HandleWriterCapsules))
	mux.HandleFunc("GET /v1/prompts", h.authed(h.HandlePrompts))
	mux.HandleFunc("GET /media/{key...}", h.authed(h.HandleMedia))

	for path, fn := range map[string]http.HandlerFunc{
		"/functions/ai-polish":         h.HandleFunctionPolish,
		"/functions/generate-metadata": h.HandleFunctionMetadata,
		"/functions/smart-prompts":     h.HandleFunctionPrompts,
		"/functions/speech-to-text":    h.HandleFunctionSpeechToText,
	} {
		mux.HandleFunc("OPTIONS "+path, h.HandlePreflight)
		mux.HandleFunc("POST "+path, h.withCORS(h.authed(fn)))
	}

	return requestID(h.logRequests(securityHeaders(mux)))
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// RequestIDHeader carries the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// requestID tags each request with an ID, reusing a caller-supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.WithContext(r.Context(), h.logger).Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("katha api listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
