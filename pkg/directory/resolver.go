package directory

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// Reserved single-byte prefixes for the directory layer's own bookkeeping
// keys. Allocated directory prefixes are tuple-encoded single-element
// tuples, which always begin with a type code <= 0x0a (see pkg/tuple), so
// these values can never collide with a prefix handed back to a caller.
var (
	pathTableKey = []byte{0xfe}
	counterKey   = []byte{0xfd}
)

// Resolver maps Paths to stable byte-string prefixes, allocating new
// mappings in the embedded store's directory subspace on first use and
// caching the result for process lifetime (§4.C).
type Resolver struct {
	driver *txn.Driver
	cache  *lru.Cache
}

// NewResolver constructs a Resolver backed by driver, with an LRU cache
// sized to cap pathological dynamic-path cardinalities. The caller
// (objstore.Open) sizes it to the declared type and protocol count plus one,
// so static paths are never evicted.
func NewResolver(driver *txn.Driver, cacheSize int) (*Resolver, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	return &Resolver{driver: driver, cache: cache}, nil
}

// Resolve returns the stable byte prefix for path, allocating it if this is
// the first time path has been seen. binding supplies values for any Field
// segments in path; it may be nil if path is entirely static.
func (r *Resolver) Resolve(ctx context.Context, path Path, binding *Binding) ([]byte, error) {
	segments, err := materialize(path, binding)
	if err != nil {
		return nil, err
	}

	cacheKey := strings.Join(segments, "\x00")
	if v, ok := r.cache.Get(cacheKey); ok {
		return v.([]byte), nil
	}

	prefix, err := r.allocate(ctx, segments)
	if err != nil {
		return nil, err
	}
	r.cache.Add(cacheKey, prefix)
	return prefix, nil
}

// CacheLen returns the number of resolved paths currently cached, for the
// admin CLI's cache-introspection accessors.
func (r *Resolver) CacheLen() int { return r.cache.Len() }

// allocate looks up (or creates) the stable prefix for segments under the
// reserved pathTableKey/counterKey keys, mimicking FoundationDB's directory layer: the
// mapping itself lives in the same transactional keyspace as everything
// else, so concurrent first-resolutions of the same path race safely
// through the normal conflict-retry path.
func (r *Resolver) allocate(ctx context.Context, segments []string) ([]byte, error) {
	elements := make(tuple.Tuple, len(segments))
	for i, s := range segments {
		elements[i] = s
	}
	pathKey, err := tuple.Encode(elements)
	if err != nil {
		return nil, fmt.Errorf("directory: encoding path: %w", err)
	}
	lookupKey := append(append([]byte{}, pathTableKey...), pathKey...)

	var prefix []byte
	err = r.driver.Run(ctx, nil, txn.Options{Writable: true}, func(ctx context.Context, tx kv.Transaction) error {
		existing, err := tx.Get(ctx, lookupKey)
		if err != nil {
			return err
		}
		if existing != nil {
			prefix = existing
			return nil
		}

		id, err := nextID(ctx, tx)
		if err != nil {
			return err
		}
		allocated, err := tuple.Encode(tuple.Tuple{id})
		if err != nil {
			return fmt.Errorf("directory: encoding allocated prefix: %w", err)
		}
		tx.Set(lookupKey, allocated)
		prefix = allocated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prefix, nil
}

func nextID(ctx context.Context, tx kv.Transaction) (int64, error) {
	raw, err := tx.Get(ctx, counterKey)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw != nil {
		current, err = tuple.DecodeTyped[int64](raw)
		if err != nil {
			return 0, fmt.Errorf("directory: decoding counter: %w", err)
		}
	}
	next := current + 1
	enc, err := tuple.Encode(tuple.Tuple{next})
	if err != nil {
		return 0, fmt.Errorf("directory: encoding counter: %w", err)
	}
	tx.Set(counterKey, enc)
	return next, nil
}
