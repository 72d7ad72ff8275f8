package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"github.com/rapidriter/wasm-renderer/domain/ports"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultKeepAliveInterval is how long a stream may stay idle before a
	// keep-alive comment is sent.
	DefaultKeepAliveInterval = time.Second

	// DefaultKeepAliveText is the keep-alive comment body.
	DefaultKeepAliveText = "keep-alive"
)

// adapterConfig holds configuration for the Adapter.
type adapterConfig struct {
	observer      ports.StreamObserver
	logger        *slog.Logger
	keepAliveText string
	keepAlive     time.Duration
}

func defaultAdapterConfig() adapterConfig {
	return adapterConfig{
		observer:      nopObserver{},
		logger:        slog.Default(),
		keepAliveText: DefaultKeepAliveText,
		keepAlive:     DefaultKeepAliveInterval,
	}
}

// Option configures the Adapter.
type Option func(*adapterConfig)

// WithKeepAlive sets the idle keep-alive interval and comment text.
// A non-positive interval disables keep-alives.
func WithKeepAlive(interval time.Duration, text string) Option {
	return func(c *adapterConfig) {
		c.keepAlive = interval
		if text != "" {
			c.keepAliveText = text
		}
	}
}

// WithObserver registers a stream observer.
func WithObserver(o ports.StreamObserver) Option {
	return func(c *adapterConfig) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *adapterConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Adapter pushes events pulled from a source to a Sink.
type Adapter struct {
	config adapterConfig
}

// NewAdapter creates an Adapter.
func NewAdapter(opts ...Option) *Adapter {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Adapter{config: cfg}
}

type pulled struct {
	err error
	ev  entities.Event
	ok  bool
}

// Run streams src to sink until a terminal event has been written, the
// source fails, or ctx is done.
//
// A source failure is written as an error event and returned. A transport
// failure or cancellation returns *errors.ClientDisconnected. Run never
// returns while src.Next is still executing.
func (a *Adapter) Run(ctx context.Context, src ports.EventSource, sink Sink) (err error) {
	start := time.Now()
	defer func() {
		a.config.observer.StreamClosed(err, time.Since(start))
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan pulled)
	acks := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		produce(ctx, src, items, acks)
		return nil
	})

	err = a.consume(ctx, sink, items, acks)
	cancel()
	_ = g.Wait()
	return err
}

// produce pulls one event at a time, waiting for the consumer's ack before
// pulling the next.
func produce(ctx context.Context, src ports.EventSource, items chan<- pulled, acks <-chan struct{}) {
	for {
		ev, ok, err := src.Next(ctx)
		select {
		case items <- pulled{ev: ev, ok: ok, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil || !ok || ev.Kind.Terminal() {
			return
		}
		select {
		case <-acks:
		case <-ctx.Done():
			return
		}
	}
}

func (a *Adapter) consume(ctx context.Context, sink Sink, items <-chan pulled, acks chan<- struct{}) error {
	var tick <-chan time.Time
	var ticker *time.Ticker
	if a.config.keepAlive > 0 {
		ticker = time.NewTicker(a.config.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return &domainerrors.ClientDisconnected{Err: ctx.Err()}

		case <-tick:
			if err := sink.WriteComment(a.config.keepAliveText); err != nil {
				return &domainerrors.ClientDisconnected{Err: err}
			}
			if err := sink.Flush(); err != nil {
				return &domainerrors.ClientDisconnected{Err: err}
			}
			a.config.observer.KeepAliveSent()

		case p := <-items:
			if p.err != nil {
				return a.fail(ctx, sink, p.err)
			}
			if !p.ok {
				return nil
			}
			if err := a.send(sink, p.ev); err != nil {
				return err
			}
			if p.ev.Kind.Terminal() {
				return nil
			}
			if ticker != nil {
				ticker.Reset(a.config.keepAlive)
			}
			select {
			case acks <- struct{}{}:
			case <-ctx.Done():
				return &domainerrors.ClientDisconnected{Err: ctx.Err()}
			}
		}
	}
}

func (a *Adapter) send(sink Sink, ev entities.Event) error {
	if err := sink.WriteEvent(ev.Name(), ev.Data()); err != nil {
		return &domainerrors.ClientDisconnected{Err: err}
	}
	if err := sink.Flush(); err != nil {
		return &domainerrors.ClientDisconnected{Err: err}
	}
	a.config.observer.EventSent(ev)
	return nil
}

// fail ends the stream with an error event. Disconnects are returned as is.
func (a *Adapter) fail(ctx context.Context, sink Sink, cause error) error {
	if domainerrors.IsDisconnect(cause) {
		return cause
	}
	a.config.logger.WarnContext(ctx, "stream stopped by guest fault", "error", cause)
	if err := a.send(sink, entities.Failure(domainerrors.ToErrorDetail(cause))); err != nil {
		return err
	}
	return cause
}

type nopObserver struct{}

func (nopObserver) EventSent(entities.Event) {}

func (nopObserver) KeepAliveSent() {}

func (nopObserver) StreamClosed(error, time.Duration) {}
