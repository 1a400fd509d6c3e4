package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/clock"
	"github.com/sendratama/otpgate/internal/pkg/goroutine"
	"github.com/sendratama/otpgate/internal/pkg/hash"
	"github.com/sendratama/otpgate/internal/pkg/idempotency"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/secret"
	"github.com/sendratama/otpgate/internal/pkg/uid"
	"github.com/sendratama/otpgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type ChallengeIssuedEvent struct {
	ChallengeID int64
	SubjectID   string
	Purpose     entity.Purpose
	ExpiresAt   time.Time
}

type ChallengeConsumedEvent struct {
	ChallengeID int64
	SubjectID   string
	Purpose     entity.Purpose
	Attempts    int32
}

type repoMessaging interface {
	PublishChallengeIssued(ctx context.Context, msg ChallengeIssuedEvent) error
	PublishChallengeConsumed(ctx context.Context, msg ChallengeConsumedEvent) error
}

// ChallengeStore is the persistence boundary. Every operation carries an
// explicit concurrency contract; any backend satisfying them is acceptable.
type ChallengeStore interface {
	// CreateAndSupersede atomically consumes any unconsumed challenge for
	// the same (subject, purpose) pair and inserts the new one. The
	// cooldown is enforced inside the same atomic unit: when the most
	// recent challenge for the pair was created within it, the call fails
	// with entity.ThrottledError and nothing is written.
	CreateAndSupersede(ctx context.Context, ch entity.Challenge, cooldown time.Duration) error

	// FetchActive returns the single unconsumed, most recently created
	// challenge for the pair or goerror.ErrNotFound.
	FetchActive(ctx context.Context, subjectID string, purpose entity.Purpose) (*entity.Challenge, error)

	// IncrementAttemptsAndFetch atomically bumps the attempt counter and
	// returns the post-increment row. Two concurrent calls must never
	// observe the same pre-increment value.
	IncrementAttemptsAndFetch(ctx context.Context, id int64) (*entity.Challenge, error)

	// MarkConsumed is idempotent; consuming twice is a no-op.
	MarkConsumed(ctx context.Context, id int64) error

	// LastCreatedAt returns the creation time of the most recent
	// challenge for the pair regardless of state, or goerror.ErrNotFound.
	LastCreatedAt(ctx context.Context, subjectID string, purpose entity.Purpose) (time.Time, error)

	// PurgeExpired deletes rows whose deadline passed before olderThan,
	// up to limit, returning how many were removed.
	PurgeExpired(ctx context.Context, olderThan time.Time, limit int32) (int64, error)
}

// Delivery carries everything a channel needs to hand the plaintext code
// to the subject. The code must never be logged.
type Delivery struct {
	ChallengeID int64
	SubjectID   string
	Destination string
	Code        string
	Purpose     entity.Purpose
	ExpiresAt   time.Time
}

// Notifier delivers the plaintext code to the subject. Implementations own
// templating and retries.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Options is the tunable behavior of the engine, resolved from config at
// construction so several differently tuned instances can coexist.
type Options struct {
	CodeLength      int
	Expiration      time.Duration
	MaxAttempts     int32
	Cooldown        time.Duration
	DeliveryTimeout time.Duration
	StoreTimeout    time.Duration

	// Retention is how long terminal and expired rows are kept before the
	// sweep deletes them.
	Retention time.Duration

	// TTLOverrides replaces Expiration for specific purposes.
	TTLOverrides map[entity.Purpose]time.Duration
}

const (
	defaultCodeLength      = 6
	defaultExpiration      = 10 * time.Minute
	defaultMaxAttempts     = int32(5)
	defaultCooldown        = 60 * time.Second
	defaultDeliveryTimeout = 10 * time.Second
	defaultStoreTimeout    = 5 * time.Second
	defaultRetention       = 24 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.CodeLength <= 0 {
		o.CodeLength = defaultCodeLength
	}
	if o.Expiration <= 0 {
		o.Expiration = defaultExpiration
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Cooldown < 0 {
		o.Cooldown = defaultCooldown
	}
	if o.DeliveryTimeout <= 0 {
		o.DeliveryTimeout = defaultDeliveryTimeout
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	if o.Retention <= 0 {
		o.Retention = defaultRetention
	}
	return o
}

// ttlFor resolves the expiration window for a purpose.
func (o Options) ttlFor(p entity.Purpose) time.Duration {
	if d, ok := o.TTLOverrides[p]; ok && d > 0 {
		return d
	}
	return o.Expiration
}

// ParseTTLOverrides parses entries of the form "purpose:minutes", such as
// "login:5", skipping malformed or unknown entries.
func ParseTTLOverrides(raws []string) map[entity.Purpose]time.Duration {
	entries := lo.FilterMap(raws, func(raw string, _ int) (lo.Entry[entity.Purpose, time.Duration], bool) {
		name, minutes, found := strings.Cut(strings.TrimSpace(raw), ":")
		if !found {
			return lo.Entry[entity.Purpose, time.Duration]{}, false
		}

		purpose := entity.PurposeFromString(name)
		if purpose.IsUnknown() {
			return lo.Entry[entity.Purpose, time.Duration]{}, false
		}

		n, err := strconv.Atoi(strings.TrimSpace(minutes))
		if err != nil || n <= 0 {
			return lo.Entry[entity.Purpose, time.Duration]{}, false
		}

		return lo.Entry[entity.Purpose, time.Duration]{
			Key:   purpose,
			Value: time.Duration(n) * time.Minute,
		}, true
	})

	if len(entries) == 0 {
		return nil
	}
	return lo.FromEntries(entries)
}

type Usecase struct {
	store     ChallengeStore
	guard     *ThrottleGuard
	notifier  Notifier
	repoMsg   repoMessaging
	generator secret.Generator
	hasher    hash.Hash
	validator validator.Validator
	idemp     idempotency.Idempotency
	uid       uid.NumberID
	clock     clock.Clocker
	ins       instrument.Instrumentation
	goroutine *goroutine.Manager
	opts      Options
}

type Dependency struct {
	Store         ChallengeStore
	Notifier      Notifier
	RepoMessaging repoMessaging
	Generator     secret.Generator
	Hasher        hash.Hash
	Validator     validator.Validator
	Idempotency   idempotency.Idempotency
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
	Options       Options
}

func New(dep Dependency) *Usecase {
	opts := dep.Options.withDefaults()

	return &Usecase{
		store:     dep.Store,
		guard:     NewThrottleGuard(dep.Store, dep.Clock, opts.Cooldown),
		notifier:  dep.Notifier,
		repoMsg:   dep.RepoMessaging,
		generator: dep.Generator,
		hasher:    dep.Hasher,
		validator: dep.Validator,
		idemp:     dep.Idempotency,
		uid:       dep.UID,
		clock:     dep.Clock,
		ins:       dep.Instrument,
		goroutine: dep.Goroutine,
		opts:      opts,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("challenge.usecase").Start(ctx, name)
}

func (s *Usecase) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}
