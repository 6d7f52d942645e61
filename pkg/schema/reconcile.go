package schema

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// Reconciler runs the index-state reconciliation pass (§4.L, §3.1): at
// container init, every declared index on every declared type transitions
// toward Readable, unless an operator has pinned a slower rollout. This is
// a single synchronous pass — not a multi-phase background backfill
// orchestrator — matching the source's documented eager-transition
// behavior (see DESIGN.md).
//
// Types with a dynamic directory are skipped: reconciliation needs a
// resolvable, partition-independent prefix, which a dynamic directory only
// has per record instance.
type Reconciler struct {
	driver   *txn.Driver
	resolver *directory.Resolver
	registry *Registry
	pinned   map[string]index.State
}

// NewReconciler builds a Reconciler. pinned maps "<typeName>.<indexName>"
// to the state an operator wants that index held at, overriding the
// default "drive straight to Readable" behavior; it may be nil.
func NewReconciler(driver *txn.Driver, resolver *directory.Resolver, registry *Registry, pinned map[string]index.State) *Reconciler {
	return &Reconciler{driver: driver, resolver: resolver, registry: registry, pinned: pinned}
}

// RunOnce performs the reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	logger := log.WithComponent("schema")
	for _, td := range r.registry.Types() {
		if td.Directory.HasDynamic() || len(td.Indexes) == 0 {
			continue
		}
		prefix, err := r.resolver.Resolve(ctx, td.Directory, nil)
		if err != nil {
			return fmt.Errorf("schema: resolving directory for %s: %w", td.Name, err)
		}

		err = r.driver.Run(ctx, nil, txn.Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
			for _, desc := range td.Indexes {
				target := index.Readable
				if pinned, ok := r.pinned[td.Name+"."+desc.Name]; ok {
					target = pinned
				}

				current, err := readIndexState(ctx, tx, prefix, desc.Name)
				if err != nil {
					return err
				}
				if current >= target {
					continue
				}
				if err := writeIndexState(tx, prefix, desc.Name, target); err != nil {
					return err
				}
				logger.Info().Str("type", td.Name).Str("index", desc.Name).
					Str("from", current.String()).Str("to", target.String()).
					Msg("reconciled index state")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func indexStateKey(prefix []byte, indexName string) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"meta", "index-state", indexName})
	if err != nil {
		return nil, fmt.Errorf("schema: encoding index-state key: %w", err)
	}
	return append(append([]byte{}, prefix...), enc...), nil
}

// readIndexState reads the persisted state for indexName under prefix,
// defaulting to Disabled when no entry exists yet.
func readIndexState(ctx context.Context, tx kv.Transaction, prefix []byte, indexName string) (index.State, error) {
	key, err := indexStateKey(prefix, indexName)
	if err != nil {
		return index.Disabled, err
	}
	raw, err := tx.Get(ctx, key)
	if err != nil {
		return index.Disabled, err
	}
	if raw == nil {
		return index.Disabled, nil
	}
	v, err := tuple.DecodeTyped[int64](raw)
	if err != nil {
		return index.Disabled, fmt.Errorf("schema: decoding index state: %w", err)
	}
	return index.State(v), nil
}

func writeIndexState(tx kv.Transaction, prefix []byte, indexName string, state index.State) error {
	key, err := indexStateKey(prefix, indexName)
	if err != nil {
		return err
	}
	enc, err := tuple.Encode(tuple.Tuple{int64(state)})
	if err != nil {
		return fmt.Errorf("schema: encoding index state: %w", err)
	}
	tx.Set(key, enc)
	return nil
}

// ReadIndexState is the read-only accessor the admin CLI's `index list`
// subcommand and the container's index-maintainer construction use.
func ReadIndexState(ctx context.Context, tx kv.Transaction, prefix []byte, indexName string) (index.State, error) {
	return readIndexState(ctx, tx, prefix, indexName)
}

// EnsureIndexState reads indexName's persisted state for prefix, lazily
// promoting it straight to Readable on first observation (state still
// Disabled, meaning no entry has ever been written for this prefix). This
// is how a dynamic-directory type's indexes reach Readable: RunOnce only
// reconciles the static-directory types it can resolve a prefix for without
// a record instance (§3.1), so each dynamic partition instead transitions
// the first time a write actually resolves it, via the session's ordinary
// write path (session.saveGroup / buildMaintainers).
func EnsureIndexState(ctx context.Context, tx kv.Transaction, prefix []byte, indexName string) (index.State, error) {
	state, err := readIndexState(ctx, tx, prefix, indexName)
	if err != nil {
		return index.Disabled, err
	}
	if state != index.Disabled {
		return state, nil
	}
	if err := writeIndexState(tx, prefix, indexName, index.Readable); err != nil {
		return index.Disabled, err
	}
	return index.Readable, nil
}
