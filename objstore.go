// Package objstore wires the store's components together (§4.L): the
// embedded KV engine, the transaction driver, the directory resolver, the
// schema registry, the security delegate, and the query executor. A
// Container is the one long-lived handle a process builds at startup;
// everything else (sessions, admin scans) is obtained through it.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/objstore/pkg/config"
	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/kv/boltkv"
	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/query"
	"github.com/cuemby/objstore/pkg/recordcodec"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/security"
	"github.com/cuemby/objstore/pkg/session"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// metricsOnce guards metrics.Register: a process may open more than one
// Container (tests do), but Prometheus collectors may only be registered
// once per process.
var metricsOnce sync.Once

// indexSubspace builds the storage prefix for one index under a resolved
// type directory, mirroring pkg/query's and pkg/session's private
// key-building (§3: S/x/<index-name>/...).
func indexSubspace(typePrefix []byte, indexName string) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"x", indexName})
	if err != nil {
		return nil, fmt.Errorf("objstore: encoding index subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

// itemSubspace and blobSubspace mirror the same private key-building
// pkg/query and pkg/session each own (§3: S/i/<type>/... and S/b/...), for
// the admin rebuild path's raw record scan.
func itemSubspace(typePrefix []byte, typeName string) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"i", typeName})
	if err != nil {
		return nil, fmt.Errorf("objstore: encoding item subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

func blobSubspace(typePrefix []byte) ([]byte, error) {
	enc, err := tuple.Encode(tuple.Tuple{"b"})
	if err != nil {
		return nil, fmt.Errorf("objstore: encoding blob subspace: %w", err)
	}
	return append(append([]byte{}, typePrefix...), enc...), nil
}

// ErrUnknownType is returned by ResolveDirectory/StoreFor when the given
// type name names no declared type.
var ErrUnknownType = errors.New("objstore: undeclared type")

// ErrUnknownProtocol is returned by ResolvePolymorphicDirectory when the
// given protocol name names no declared protocol.
var ErrUnknownProtocol = errors.New("objstore: undeclared protocol")

// metadataDirectory is the container's own reserved static path, used for
// the persisted schema version and kept outside any declared type's
// directory.
var metadataDirectory = directory.Path{directory.Lit("meta")}

// Config declares everything a Container needs to build its fixed
// collaborators once at process startup.
type Config struct {
	// DataDir is the bbolt file path the embedded engine opens.
	DataDir string
	// Version, Types, and Protocols declare the schema (§3.1).
	Version   schema.Version
	Types     []schema.TypeDescriptor
	Protocols []schema.ProtocolDescriptor
	// Security defaults to security.AllowAll{} when nil.
	Security security.Delegate
	// Txn seeds the transaction-driver tuning knobs (the zero value means
	// txn.DefaultConfig()); config.FromEnv layers environment overrides on
	// top before use.
	Txn txn.Config
	// Pinned overrides the reconciler's default "drive straight to
	// Readable" behavior per "<typeName>.<indexName>".
	Pinned map[string]index.State
}

// Container owns the store handle and every component built against it.
type Container struct {
	store    *boltkv.Store
	driver   *txn.Driver
	resolver *directory.Resolver
	registry *schema.Registry
	security security.Delegate
	query    *query.Executor
}

// Open builds a Container: opens the embedded engine, validates the type
// declarations, registers Prometheus collectors, checks and persists the
// schema version, and runs the index-state reconciliation pass, in that order. A version-incompatible
// persisted schema or a malformed type declaration fails fatally.
func Open(ctx context.Context, cfg Config) (*Container, error) {
	sec := cfg.Security
	if sec == nil {
		sec = security.AllowAll{}
	}

	store, err := boltkv.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("objstore: opening store: %w", err)
	}

	txnDefaults := cfg.Txn
	if txnDefaults == (txn.Config{}) {
		txnDefaults = txn.DefaultConfig()
	}
	driver := txn.NewDriver(store, config.FromEnv(txnDefaults))

	cacheSize := len(cfg.Types) + len(cfg.Protocols) + 1
	resolver, err := directory.NewResolver(driver, cacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("objstore: building directory resolver: %w", err)
	}

	registry, err := schema.NewRegistry(cfg.Version, cfg.Types, cfg.Protocols)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("objstore: validating schema: %w", err)
	}

	metricsOnce.Do(metrics.Register)

	metadataPrefix, err := resolver.Resolve(ctx, metadataDirectory, nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("objstore: resolving metadata directory: %w", err)
	}
	if err := schema.EnsureVersion(ctx, driver, metadataPrefix, registry); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("objstore: checking schema version: %w", err)
	}

	reconciler := schema.NewReconciler(driver, resolver, registry, cfg.Pinned)
	if err := reconciler.RunOnce(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("objstore: reconciling index states: %w", err)
	}

	exec := query.NewExecutor(driver, resolver, registry, sec)

	log.WithComponent("objstore").Info().
		Str("data_dir", cfg.DataDir).
		Int("types", len(cfg.Types)).
		Int("protocols", len(cfg.Protocols)).
		Msg("container opened")

	return &Container{
		store:    store,
		driver:   driver,
		resolver: resolver,
		registry: registry,
		security: sec,
		query:    exec,
	}, nil
}

// Close releases the underlying engine handle.
func (c *Container) Close() error { return c.store.Close() }

// NewSession builds a unit-of-work against the container's shared
// collaborators. When autosave is true, every Insert/Delete schedules a
// debounced Save; a failed autosave is logged through obs/log rather than
// surfaced, since there is no caller left in the call stack to return it to.
func (c *Container) NewSession(autosave bool) *session.Session {
	cfg := session.Config{
		Driver:   c.driver,
		Resolver: c.resolver,
		Registry: c.registry,
		Security: c.security,
		Query:    c.query,
	}
	return session.New(cfg, autosave, func(err error) {
		log.WithComponent("objstore").Error().Err(err).Msg("autosave failed")
	})
}

// ResolveDirectory resolves typeName's storage prefix, supplying binding
// for a dynamic directory (nil for a static one).
func (c *Container) ResolveDirectory(ctx context.Context, typeName string, binding *directory.Binding) ([]byte, error) {
	td, ok := c.registry.TypeByName(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	return c.resolver.Resolve(ctx, td.Directory, binding)
}

// ResolvePolymorphicDirectory resolves protocol's shared directory prefix.
func (c *Container) ResolvePolymorphicDirectory(ctx context.Context, protocol string) ([]byte, error) {
	pd, ok := c.registry.ProtocolByName(protocol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, protocol)
	}
	return c.resolver.Resolve(ctx, pd.Directory, nil)
}

// TypeStore bundles a resolved type's storage prefix and declared indexes,
// for administrative tooling that needs to run raw transactions against one
// type's subspace (index rebuilds, violation scans) without going through a
// session's change-set.
type TypeStore struct {
	Type   schema.TypeDescriptor
	Prefix []byte
	driver *txn.Driver
}

// StoreFor resolves typeName's TypeStore, supplying binding for a dynamic
// directory.
func (c *Container) StoreFor(ctx context.Context, typeName string, binding *directory.Binding) (*TypeStore, error) {
	td, ok := c.registry.TypeByName(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	prefix, err := c.resolver.Resolve(ctx, td.Directory, binding)
	if err != nil {
		return nil, err
	}
	return &TypeStore{Type: td, Prefix: prefix, driver: c.driver}, nil
}

// Violations runs a read-only transaction and returns every recorded
// uniqueness violation for indexName on this type.
func (ts *TypeStore) Violations(ctx context.Context, indexName string) ([]index.Violation, error) {
	var desc *index.Descriptor
	for i := range ts.Type.Indexes {
		if ts.Type.Indexes[i].Name == indexName {
			desc = &ts.Type.Indexes[i]
			break
		}
	}
	if desc == nil {
		return nil, fmt.Errorf("objstore: %s declares no index %q", ts.Type.Name, indexName)
	}

	var out []index.Violation
	err := ts.driver.Run(ctx, nil, txn.Options{}, func(ctx context.Context, tx kv.Transaction) error {
		subspace, err := indexSubspace(ts.Prefix, desc.Name)
		if err != nil {
			return err
		}
		state, err := schema.ReadIndexState(ctx, tx, ts.Prefix, desc.Name)
		if err != nil {
			return err
		}
		m := index.NewMaintainer(subspace, *desc, state)
		out, err = m.Violations(ctx, tx)
		return err
	})
	return out, err
}

// IndexState reports indexName's persisted rollout state.
func (ts *TypeStore) IndexState(ctx context.Context, indexName string) (index.State, error) {
	var state index.State
	err := ts.driver.Run(ctx, nil, txn.Options{}, func(ctx context.Context, tx kv.Transaction) error {
		s, err := schema.ReadIndexState(ctx, tx, ts.Prefix, indexName)
		state = s
		return err
	})
	return state, err
}

// RebuildIndex clears indexName's existing entries and recomputes them from
// a full scan of the type's stored records, in one transaction. Used to
// repair an index after a key-expression change or a suspected drift; a
// large type makes this an expensive call, so it is left to administrative
// tooling rather than anything run automatically.
func (ts *TypeStore) RebuildIndex(ctx context.Context, indexName string) (int, error) {
	var desc *index.Descriptor
	for i := range ts.Type.Indexes {
		if ts.Type.Indexes[i].Name == indexName {
			desc = &ts.Type.Indexes[i]
			break
		}
	}
	if desc == nil {
		return 0, fmt.Errorf("objstore: %s declares no index %q", ts.Type.Name, indexName)
	}

	scanned := 0
	err := ts.driver.Run(ctx, nil, txn.Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		subspace, err := indexSubspace(ts.Prefix, desc.Name)
		if err != nil {
			return err
		}
		begin, end := tuple.Range(subspace)
		tx.ClearRange(begin, end)

		blobs, err := blobSubspace(ts.Prefix)
		if err != nil {
			return err
		}
		items, err := itemSubspace(ts.Prefix, ts.Type.Name)
		if err != nil {
			return err
		}
		itemBegin, itemEnd := tuple.Range(items)
		it, err := tx.GetRange(ctx, itemBegin, itemEnd, 0, false, kv.StreamingModeIterator)
		if err != nil {
			return err
		}

		state, err := schema.ReadIndexState(ctx, tx, ts.Prefix, desc.Name)
		if err != nil {
			return err
		}
		m := index.NewMaintainer(subspace, *desc, state)

		for it.Next() {
			item := it.Item()

			rest := item.Key[len(items):]
			idTuple, err := tuple.Decode(rest)
			if err != nil {
				return fmt.Errorf("objstore: decoding record id: %w", err)
			}

			raw, err := recordcodec.Load(ctx, tx, blobs, item.Value)
			if err != nil {
				return fmt.Errorf("objstore: loading record %v: %w", idTuple, err)
			}
			record, err := recordcodec.DeserializeAny(raw, ts.Type.New)
			if err != nil {
				return fmt.Errorf("objstore: deserializing record %v: %w", idTuple, err)
			}
			if err := m.Scan(ctx, tx, record, idTuple); err != nil {
				return fmt.Errorf("objstore: indexing record %v: %w", idTuple, err)
			}
			scanned++
		}
		return it.Err()
	})
	return scanned, err
}

// Registry exposes the container's schema registry for read-only
// introspection (the admin CLI's `schema show`/`index list`).
func (c *Container) Registry() *schema.Registry { return c.registry }

// Driver exposes the container's transaction driver for administrative
// tooling that needs to run a raw transaction against a subspace this
// package's own types don't model (the admin CLI's `vector stats`).
func (c *Container) Driver() *txn.Driver { return c.driver }

// DirectoryCacheLen reports how many directory paths are currently
// resolved and cached, for administrative introspection.
func (c *Container) DirectoryCacheLen() int { return c.resolver.CacheLen() }
