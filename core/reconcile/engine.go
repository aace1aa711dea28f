package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Engine drives a single key towards its desired state using optimistic
// concurrency. It holds no state between calls and is safe for concurrent use.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger}
}

// Reconcile reconciles one key with default options.
func Reconcile(ctx context.Context, b Backend, desired DesiredState) (Outcome, error) {
	return NewEngine(Options{}, nil).Reconcile(ctx, b, desired)
}

// Reconcile validates desired, then runs Read -> Decide -> Apply against b.
// A token mismatch on Apply restarts from Read until MaxAttempts is reached.
// Transport failures are not retried. When err is non-nil the Outcome has
// Success=false and its Failure equals KindOf(err).
func (e *Engine) Reconcile(ctx context.Context, b Backend, desired DesiredState) (Outcome, error) {
	d, err := Validate(desired)
	if err != nil {
		return failed(KindOf(err), 0, ActionNone), err
	}

	l := e.logger.With(zap.String("key", d.Key), zap.String("state", string(d.Presence)))

	var plan Plan
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed(Timeout, attempt-1, plan.Action), newError(Timeout, d.Key, ctxErr)
		}

		observed, err := b.Read(ctx, d.Key)
		if err != nil {
			ferr := classify(ctx, d.Key, "read", err)
			return failed(KindOf(ferr), attempt, plan.Action), ferr
		}

		plan = Decide(d, observed)
		if !plan.Changes() {
			l.Debug("Key already in desired state", zap.Int("attempt", attempt))
			return Outcome{Success: true, Action: ActionNone, Attempts: attempt}, nil
		}

		if e.opts.DryRun {
			l.Debug("Dry-run: skipping apply", zap.String("action", string(plan.Action)))
			return Outcome{Success: true, Changed: true, Action: plan.Action, Attempts: attempt}, nil
		}

		applied, err := apply(ctx, b, d, plan)
		if err != nil {
			ferr := classify(ctx, d.Key, string(plan.Action), err)
			return failed(KindOf(ferr), attempt, plan.Action), ferr
		}
		if applied {
			return Outcome{Success: true, Changed: true, Action: plan.Action, Attempts: attempt}, nil
		}

		l.Debug("Concurrency token changed, retrying",
			zap.Int("attempt", attempt),
			zap.String("action", string(plan.Action)),
			zap.String("expected_token", string(plan.Expected)),
		)
	}

	err = newError(ConcurrentModification, d.Key,
		fmt.Errorf("token changed before each of %d attempts", e.opts.MaxAttempts))
	return failed(ConcurrentModification, e.opts.MaxAttempts, plan.Action), err
}

// classify maps a backend error to Timeout when the caller's context is done,
// and to BackendUnavailable otherwise. Input errors raised by a backend keep their kind.
func classify(ctx context.Context, key, op string, err error) error {
	var re *Error
	if errors.As(err, &re) && re.Kind.IsValidation() {
		return newError(re.Kind, key, re.Err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(Timeout, key, fmt.Errorf("%s: %w", op, errors.Join(ctxErr, err)))
	}

	if re != nil && re.Kind == BackendUnavailable && re.Err != nil {
		err = re.Err
	}
	return newError(BackendUnavailable, key, fmt.Errorf("%s: %w", op, err))
}

func failed(kind FailureKind, attempts int, action Action) Outcome {
	return Outcome{Success: false, Action: action, Attempts: attempts, Failure: kind}
}
