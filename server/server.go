package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rapidriter/wasm-renderer/application/schema"
	"github.com/rapidriter/wasm-renderer/application/validation"
	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/driver"
	"github.com/rapidriter/wasm-renderer/host"
	adapter "github.com/rapidriter/wasm-renderer/infrastructure/wazero"
	"github.com/rapidriter/wasm-renderer/metrics"
	"github.com/rapidriter/wasm-renderer/stream"
	"golang.org/x/sync/semaphore"
)

var errRenderTimeout = errors.New("render timed out")

// Server serves render streams.
type Server struct {
	executor  *host.Executor
	validator *validation.RequestValidator
	streams   *semaphore.Weighted
	limiter   *clientLimiter
	adapter   *stream.Adapter
	schema    []byte
	config    serverConfig
}

// New creates a Server that loads guests with executor.
func New(executor *host.Executor, opts ...Option) (*Server, error) {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.recorder == nil {
		cfg.recorder = metrics.NewRecorder(false)
	}

	v, err := validation.NewRequestValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create request validator: %w", err)
	}
	raw, err := schema.RenderRequestSchema()
	if err != nil {
		return nil, err
	}

	return &Server{
		executor:  executor,
		validator: v,
		streams:   semaphore.NewWeighted(cfg.maxConcurrentStreams),
		limiter:   newClientLimiter(cfg.rateLimit, cfg.rateBurst),
		adapter: stream.NewAdapter(
			stream.WithKeepAlive(cfg.keepAlive, cfg.keepAliveText),
			stream.WithObserver(cfg.recorder),
			stream.WithLogger(cfg.logger),
		),
		schema: raw,
		config: cfg,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.Handle("GET /metrics", s.config.recorder.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		err := httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.config.logger.Info("render server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(s.schema)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	id := newRenderID()
	ctx := adapter.WithRenderID(r.Context(), id)
	logger := s.config.logger

	if !s.limiter.allow(clientKey(r), time.Now()) {
		s.reject(w, http.StatusTooManyRequests, "rate_limited", "too many render requests")
		return
	}
	if !s.streams.TryAcquire(1) {
		s.reject(w, http.StatusServiceUnavailable, "unavailable", "too many streams in progress")
		return
	}
	defer s.streams.Release(1)

	wasm, err := s.readModule(w, r)
	if err != nil {
		logger.DebugContext(ctx, "render request rejected", "error", err)
		writeError(w, err)
		return
	}

	renderer, err := s.executor.Load(ctx, wasm)
	s.config.recorder.LoadFinished(err)
	if err != nil {
		logger.InfoContext(ctx, "guest module refused", "error", err)
		writeError(w, err)
		return
	}
	defer func() {
		if err := renderer.Close(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "failed to close guest runtime", "error", err)
		}
	}()

	renderCtx := ctx
	if s.config.renderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeoutCause(ctx, s.config.renderTimeout, errRenderTimeout)
		defer cancel()
	}

	sink := stream.NewSSEWriter(w)
	w.WriteHeader(http.StatusOK)
	if err := sink.Flush(); err != nil {
		logger.DebugContext(ctx, "client gone before stream start", "error", err)
		return
	}

	runner := driver.NewRunner(renderer, driver.WithMaxIndex(s.config.maxFrameIndex))
	src := driver.Paced(runner, s.config.pacer())
	start := time.Now()
	s.config.recorder.StreamStarted()
	err = s.adapter.Run(renderCtx, src, sink)

	if renderTimedOut(ctx, renderCtx, err) {
		detail := entities.NewErrorDetail("timeout", fmt.Sprintf("render exceeded %s", s.config.renderTimeout))
		if werr := sink.WriteEvent(entities.EventNameError, entities.Failure(detail).Data()); werr == nil {
			_ = sink.Flush()
		}
		logger.WarnContext(ctx, "render timed out", "elapsed", time.Since(start))
		return
	}

	switch {
	case err == nil:
		logger.DebugContext(ctx, "stream finished", "elapsed", time.Since(start))
	case domainerrors.IsDisconnect(err):
		logger.DebugContext(ctx, "client disconnected", "elapsed", time.Since(start), "error", err)
	default:
		logger.InfoContext(ctx, "stream ended by guest fault", "error", err)
	}
}

// renderTimedOut reports whether the stream was cut by the render timeout
// rather than ended by the guest or the client.
func renderTimedOut(ctx, renderCtx context.Context, err error) bool {
	return domainerrors.IsDisconnect(err) &&
		errors.Is(context.Cause(renderCtx), errRenderTimeout) &&
		ctx.Err() == nil
}

// readModule reads and decodes the request body.
func (s *Server) readModule(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.maxBodyBytes))
	if err != nil {
		return nil, &domainerrors.PayloadDecodeError{Field: "body", Err: err}
	}
	return s.validator.Decode(body)
}

func (s *Server) reject(w http.ResponseWriter, status int, reason, message string) {
	s.config.recorder.Rejected(reason)
	writeJSON(w, status, entities.NewErrorDetail(reason, message))
}

// statusFor maps load-phase errors to HTTP status codes.
func statusFor(err error) int {
	var (
		payload *domainerrors.PayloadDecodeError
		compile *domainerrors.CompileError
		link    *domainerrors.LinkError
		tooBig  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &payload):
		return http.StatusBadRequest
	case errors.As(err, &compile), errors.As(err, &link):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), domainerrors.ToErrorDetail(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newRenderID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("r%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// LogAttrs returns the render ID carried by ctx as a log attribute.
func LogAttrs(ctx context.Context) []slog.Attr {
	if id, ok := adapter.RenderIDFromContext(ctx); ok {
		return []slog.Attr{slog.String("render_id", id)}
	}
	return nil
}
