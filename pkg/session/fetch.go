package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/query"
	"github.com/cuemby/objstore/pkg/readversion"
	"github.com/cuemby/objstore/pkg/recordcodec"
	"github.com/cuemby/objstore/pkg/tuple"
	"github.com/cuemby/objstore/pkg/txn"
)

// Fetch runs q against the store through the session's query executor and
// read-version cache (§4.I/§4.J).
func (s *Session) Fetch(ctx context.Context, q query.Query) ([]any, error) {
	return s.cfg.Query.Run(ctx, s.cache, q)
}

// Count runs q like Fetch but only tallies matches.
func (s *Session) Count(ctx context.Context, q query.Query) (int, error) {
	return s.cfg.Query.Count(ctx, s.cache, q)
}

// FetchByID resolves id against the pending change-set first (§4.I: a
// pending insert is returned directly, a pending delete reports absent),
// then falls back to a store read through a driver transaction. binding
// supplies the directory partition for a dynamic-directory type; pass nil
// for a static one.
func (s *Session) FetchByID(ctx context.Context, typeName string, id tuple.Tuple, binding *directory.Binding, policy readversion.Policy) (any, error) {
	key, err := keyFor(typeName, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if pending, ok := s.inserts[key]; ok {
		s.mu.Unlock()
		if err := s.cfg.Security.CanRead(ctx, typeName, id); err != nil {
			return nil, err
		}
		return pending.value, nil
	}
	if _, ok := s.deletes[key]; ok {
		s.mu.Unlock()
		return nil, ErrModelNotFound
	}
	s.mu.Unlock()

	td, ok := s.cfg.Registry.TypeByName(typeName)
	if !ok {
		return nil, fmt.Errorf("session: %w: %s", ErrUnregisteredType, typeName)
	}
	if err := s.cfg.Security.CanRead(ctx, typeName, id); err != nil {
		return nil, err
	}

	prefix, err := s.cfg.Resolver.Resolve(ctx, td.Directory, binding)
	if err != nil {
		return nil, err
	}
	itemKeyBytes, err := itemKey(prefix, typeName, id)
	if err != nil {
		return nil, err
	}
	blobs, err := blobSubspace(prefix)
	if err != nil {
		return nil, err
	}

	var record any
	err = s.cfg.Driver.Run(ctx, s.cache, txn.Options{CachePolicy: policy}, func(ctx context.Context, tx kv.Transaction) error {
		itemValue, err := tx.Get(ctx, itemKeyBytes)
		if err != nil {
			return err
		}
		if itemValue == nil {
			return ErrModelNotFound
		}
		raw, err := recordcodec.Load(ctx, tx, blobs, itemValue)
		if err != nil {
			return err
		}
		decoded, err := recordcodec.DeserializeAny(raw, td.New)
		if err != nil {
			return err
		}
		record = decoded
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return record, nil
}
