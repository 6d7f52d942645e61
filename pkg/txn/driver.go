package txn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/readversion"
)

// Options configures a single Driver.Run call.
type Options struct {
	Writable bool
	// CachePolicy controls whether a cached read version from Cache may be
	// used to seed the transaction (§4.D). Zero value is readversion.Server,
	// i.e. always fresh.
	CachePolicy readversion.Policy
	Priority    kv.Priority
	// Timeout overrides Config.DefaultTimeout when non-zero.
	Timeout time.Duration
	// TrackOnCommit records the transaction's commit version into Cache on
	// success.
	TrackOnCommit bool
}

// Fn is the caller-supplied unit of work. It may be invoked more than once
// by Driver.Run; it must be idempotent with respect to anything outside the
// transaction handle (§4.E contract).
type Fn func(ctx context.Context, tx kv.Transaction) error

// Driver runs Fn against the store with retry, backoff, and timeout per
// §4.E.
type Driver struct {
	store kv.Store
	cfg   Config
}

// NewDriver constructs a Driver against store with the given tuning config.
func NewDriver(store kv.Store, cfg Config) *Driver {
	return &Driver{store: store, cfg: cfg}
}

// Run executes fn against a live transaction, retrying on conflict/transient
// failures and seeding the transaction's read version from cache when
// opts.CachePolicy permits it and cache holds a usable value. cache may be
// nil (equivalent to always-miss, i.e. readversion.Server semantics).
func (d *Driver) Run(ctx context.Context, cache *readversion.Cache, opts Options, fn Fn) error {
	logger := log.WithComponent("txn")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if time.Now().After(deadline) {
			return fmt.Errorf("txn: %w", kv.ErrTimeout)
		}

		attemptCtx, cancel := context.WithDeadline(ctx, deadline)
		txOpts := kv.TransactionOptions{Writable: opts.Writable, Priority: opts.Priority, Timeout: timeout}
		if cache != nil {
			if v, ok := cache.Get(opts.CachePolicy); ok {
				txOpts.ReadVersion = &v
			}
		}

		tx, err := d.store.NewTransaction(attemptCtx, txOpts)
		if err != nil {
			cancel()
			return fmt.Errorf("txn: begin: %w", err)
		}

		err = fn(attemptCtx, tx)
		if err == nil {
			err = tx.Commit(attemptCtx)
		}

		if err == nil {
			if opts.TrackOnCommit && cache != nil {
				if v, verr := tx.GetReadVersion(attemptCtx); verr == nil {
					cache.Update(v)
				}
			}
			cancel()
			metrics.CommitsTotal.WithLabelValues("success").Inc()
			return nil
		}

		if discardable, ok := tx.(kv.Discardable); ok {
			discardable.Discard()
		}
		cancel()

		if !isRetryable(err) {
			metrics.CommitsTotal.WithLabelValues("error").Inc()
			return err
		}

		lastErr = err
		metrics.CommitsTotal.WithLabelValues("conflict").Inc()
		metrics.CommitRetriesTotal.Inc()

		if attempt >= d.cfg.RetryLimit {
			logger.Warn().Err(lastErr).Int("attempts", attempt+1).Msg("commit retries exhausted")
			return fmt.Errorf("%w: %v", ErrConflict, lastErr)
		}

		delay := backoffDelay(d.cfg, attempt)
		logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying transaction")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoffDelay computes delay = min(max_delay, initial_delay * 2^attempt) *
// rand[0.5, 1.5] per §4.E.
func backoffDelay(cfg Config, attempt int) time.Duration {
	base := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		base *= 2
		if base >= cfg.MaxRetryDelay {
			base = cfg.MaxRetryDelay
			break
		}
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(base) * jitter)
}

// isRetryable classifies an error per the §4.E / §7 taxonomy: conflicts and
// transient transport errors are retried, everything else (validation,
// fatal transaction, structural, security) is surfaced immediately.
func isRetryable(err error) bool {
	if errors.Is(err, kv.ErrNotCommitted) || errors.Is(err, kv.ErrCommitUnknownResult) {
		return true
	}
	var transient *TransientError
	return errors.As(err, &transient)
}
