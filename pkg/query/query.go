package query

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/readversion"
	"github.com/cuemby/objstore/pkg/recordcodec"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/security"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// Query describes one read (§4.J): a type, an optional partition binding
// for a dynamic directory, an optional index to use (with the exact
// key-expression value to match), a residual predicate evaluated against
// the decoded record, and paging.
type Query struct {
	Type      string
	Partition *directory.Binding

	// IndexName selects a declared Readable index; empty means a full scan
	// of the type's item subspace. IndexEquality, when IndexName is set,
	// must be the index's full key-expression value for the records being
	// looked up (an exact match, not a partial leading prefix).
	IndexName      string
	IndexEquality  tuple.Tuple
	Predicate      func(record any) (bool, error)
	Limit          int
	Offset         int
	Descending     bool
	CachePolicy    readversion.Policy
}

// Executor runs Query values against the store (§4.J).
type Executor struct {
	driver   *txn.Driver
	resolver *directory.Resolver
	registry *schema.Registry
	security security.Delegate
}

// NewExecutor builds an Executor. security may be nil to default to
// security.AllowAll.
func NewExecutor(driver *txn.Driver, resolver *directory.Resolver, registry *schema.Registry, sec security.Delegate) *Executor {
	if sec == nil {
		sec = security.AllowAll{}
	}
	return &Executor{driver: driver, resolver: resolver, registry: registry, security: sec}
}

// Run executes q and returns the matching decoded records in key order
// (index order for an index-based query, item-subspace key order for a
// full scan), honoring Limit/Offset.
func (e *Executor) Run(ctx context.Context, cache *readversion.Cache, q Query) ([]any, error) {
	var out []any
	err := e.iterate(ctx, cache, q, func(_ tuple.Tuple, record any) (bool, error) {
		out = append(out, record)
		return true, nil
	})
	return out, err
}

// Count executes q like Run but only tallies matches. Every candidate record
// is still loaded and decoded, whether or not q has a residual Predicate.
func (e *Executor) Count(ctx context.Context, cache *readversion.Cache, q Query) (int, error) {
	n := 0
	err := e.iterate(ctx, cache, q, func(_ tuple.Tuple, _ any) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// visit is invoked once per matching, security-cleared record within
// Limit/Offset bounds. Returning false stops iteration early (unused today,
// reserved for a future short-circuiting caller).
type visit func(id tuple.Tuple, record any) (bool, error)

func (e *Executor) iterate(ctx context.Context, cache *readversion.Cache, q Query, fn visit) error {
	td, ok := e.registry.TypeByName(q.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnregisteredType, q.Type)
	}
	if td.Directory.HasDynamic() && q.Partition == nil {
		return ErrDynamicFieldsRequired
	}

	prefix, err := e.resolver.Resolve(ctx, td.Directory, q.Partition)
	if err != nil {
		return err
	}
	blobs, err := blobSubspace(prefix)
	if err != nil {
		return err
	}

	return e.driver.Run(ctx, cache, txn.Options{CachePolicy: q.CachePolicy}, func(ctx context.Context, tx kv.Transaction) error {
		ids, err := e.candidateIDs(ctx, tx, td, prefix, q)
		if err != nil {
			return err
		}

		skipped := 0
		emitted := 0
		for _, id := range ids {
			if q.Limit > 0 && emitted >= q.Limit {
				break
			}

			key, err := itemKey(prefix, td.Name, id)
			if err != nil {
				return err
			}
			itemValue, err := tx.Get(ctx, key)
			if err != nil {
				return err
			}
			if itemValue == nil {
				continue
			}

			if err := e.security.CanRead(ctx, td.Name, id); err != nil {
				continue
			}

			raw, err := recordcodec.Load(ctx, tx, blobs, itemValue)
			if err != nil {
				return err
			}
			record, err := recordcodec.DeserializeAny(raw, td.New)
			if err != nil {
				return err
			}

			if q.Predicate != nil {
				ok, err := q.Predicate(record)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			}

			if skipped < q.Offset {
				skipped++
				continue
			}

			cont, err := fn(id, record)
			if err != nil {
				return err
			}
			emitted++
			if !cont {
				break
			}
		}
		return nil
	})
}

// candidateIDs resolves the ordered list of ids a query should consider,
// either via a declared index (equality lookup) or a full scan of the
// type's item subspace.
func (e *Executor) candidateIDs(ctx context.Context, tx kv.Transaction, td schema.TypeDescriptor, prefix []byte, q Query) ([]tuple.Tuple, error) {
	if q.IndexName == "" {
		return e.fullScanIDs(ctx, tx, prefix, td.Name, q.Descending)
	}

	var desc *index.Descriptor
	for i := range td.Indexes {
		if td.Indexes[i].Name == q.IndexName {
			desc = &td.Indexes[i]
			break
		}
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, q.IndexName)
	}
	state, err := schema.ReadIndexState(ctx, tx, prefix, desc.Name)
	if err != nil {
		return nil, err
	}
	if state != index.Readable {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotReadable, q.IndexName)
	}

	subspace, err := indexSubspace(prefix, desc.Name)
	if err != nil {
		return nil, err
	}
	exprBytes, err := tuple.Encode(q.IndexEquality)
	if err != nil {
		return nil, fmt.Errorf("query: encoding index equality: %w", err)
	}
	equalityKey := append(append([]byte{}, subspace...), exprBytes...)

	if desc.Kind == index.Unique {
		value, err := tx.Get(ctx, equalityKey)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, nil
		}
		id, err := tuple.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("query: decoding unique index value: %w", err)
		}
		return []tuple.Tuple{id}, nil
	}

	begin, end := tuple.Range(equalityKey)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return nil, err
	}
	var ids []tuple.Tuple
	for it.Next() {
		item := it.Item()
		if len(item.Key) <= len(equalityKey) {
			continue
		}
		id, err := tuple.Decode(item.Key[len(equalityKey):])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if q.Descending {
		reverse(ids)
	}
	return ids, nil
}

func (e *Executor) fullScanIDs(ctx context.Context, tx kv.Transaction, prefix []byte, typeName string, descending bool) ([]tuple.Tuple, error) {
	subspace, err := itemSubspace(prefix, typeName)
	if err != nil {
		return nil, err
	}
	begin, end := tuple.Range(subspace)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return nil, err
	}
	var ids []tuple.Tuple
	for it.Next() {
		item := it.Item()
		if len(item.Key) <= len(subspace) {
			continue
		}
		id, err := tuple.Decode(item.Key[len(subspace):])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if descending {
		reverse(ids)
	}
	return ids, nil
}

func reverse(ids []tuple.Tuple) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
