// Package scanner drives the staff-side pickup scan: sample a frame, decode a code,
// redeem it, and back off long enough that a code held in front of the camera is
// only redeemed once.
package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
)

const (
	DefaultFrameInterval = 500 * time.Millisecond
	DefaultCooldown      = 3 * time.Second
	DefaultVerifyTimeout = 3 * time.Second
)

// ErrNoCode means a frame was read but held no decodable pickup code.
var ErrNoCode = errors.New("no code in frame")

type State int

const (
	StateIdle State = iota
	StateScanning
	StateCooldown
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateCooldown:
		return "cooldown"
	case StateResult:
		return "result"
	default:
		return "unknown"
	}
}

// FrameSource is the camera. Close releases it.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

type Decoder interface {
	Decode(img image.Image) (string, error)
}

// Outcome is what the verification endpoint reported about an order.
type Outcome struct {
	OrderID    string     `json:"id"`
	Status     string     `json:"status"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
}

// Redeemed reports whether this attempt is the one that completed the order.
func (o Outcome) Redeemed(err error) bool {
	return err == nil && o.Status == domain.OrderStatusCompleted.String()
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Outcome, error)
}

// Attempt is one verify call and its result, handed to the report callback.
type Attempt struct {
	Token   string
	Manual  bool
	Outcome Outcome
	Err     error
	At      time.Time
}

type Option func(*Loop)

func WithCooldown(d time.Duration) Option {
	return func(l *Loop) { l.cooldown = d }
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(l *Loop) { l.verifyTimeout = d }
}

func WithReport(fn func(Attempt)) Option {
	return func(l *Loop) { l.report = fn }
}

type Loop struct {
	source        FrameSource
	decoder       Decoder
	verifier      Verifier
	cooldown      time.Duration
	verifyTimeout time.Duration
	report        func(Attempt)

	mu            sync.Mutex
	state         State
	cooldownUntil time.Time

	inflight sync.WaitGroup
	redeemed chan struct{}
	once     sync.Once
}

func New(source FrameSource, decoder Decoder, verifier Verifier, opts ...Option) *Loop {
	l := &Loop{
		source:        source,
		decoder:       decoder,
		verifier:      verifier,
		cooldown:      DefaultCooldown,
		verifyTimeout: DefaultVerifyTimeout,
		report:        func(Attempt) {},
		redeemed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Run samples one frame per tick until a verify redeems an order or ctx is cancelled.
// The tick's timestamp is the loop's clock. The source is closed on every exit path
// once in-flight verifies have finished.
func (l *Loop) Run(ctx context.Context, ticks <-chan time.Time) error {
	defer func() {
		l.inflight.Wait()
		if err := l.source.Close(); err != nil {
			slog.Warn("failed to release frame source", "error", err)
		}
	}()

	l.setState(StateScanning)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.redeemed:
			return nil
		case now, ok := <-ticks:
			if !ok {
				return nil
			}
			l.tick(ctx, now)
		}
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	switch l.state {
	case StateResult:
		l.mu.Unlock()
		return
	case StateCooldown:
		if now.Before(l.cooldownUntil) {
			l.mu.Unlock()
			return
		}
		l.state = StateScanning
	}
	l.mu.Unlock()

	frame, err := l.source.Frame(ctx)
	if err != nil {
		slog.DebugContext(ctx, "frame unavailable", "error", err)
		return
	}
	token, err := l.decoder.Decode(frame)
	if err != nil {
		if !errors.Is(err, ErrNoCode) {
			slog.DebugContext(ctx, "decode failed", "error", err)
		}
		return
	}

	l.mu.Lock()
	if l.state != StateScanning {
		l.mu.Unlock()
		return
	}
	l.state = StateCooldown
	l.cooldownUntil = now.Add(l.cooldown)
	l.mu.Unlock()

	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		l.verify(ctx, token, false, now)
	}()
}

// Submit verifies a manually entered token right away. It ignores the cooldown and
// does not touch the camera.
func (l *Loop) Submit(ctx context.Context, token string) (Outcome, error) {
	return l.verify(ctx, token, true, time.Now())
}

func (l *Loop) verify(ctx context.Context, token string, manual bool, at time.Time) (Outcome, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, l.verifyTimeout)
	defer cancel()

	outcome, err := l.verifier.Verify(verifyCtx, token)
	l.report(Attempt{Token: token, Manual: manual, Outcome: outcome, Err: err, At: at})

	if outcome.Redeemed(err) {
		l.setState(StateResult)
		l.once.Do(func() { close(l.redeemed) })
	}
	return outcome, err
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateResult {
		return
	}
	l.state = s
}
