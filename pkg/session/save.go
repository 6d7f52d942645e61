package session

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/directory"
	"github.com/cuemby/objstore/pkg/index"
	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/polymorphic"
	"github.com/cuemby/objstore/pkg/recordcodec"
	"github.com/cuemby/objstore/pkg/schema"
	"github.com/cuemby/objstore/pkg/txn"
)

// changeGroup is one (type, resolved-partition) unit of the Save
// algorithm's second step: every pending insert/delete sharing a type and
// resolved directory prefix is written through the same index-maintainer
// set within the single transaction Save opens.
type changeGroup struct {
	typeName string
	prefix   []byte
	inserts  []pendingRecord
	deletes  []pendingRecord
}

// Save commits the current change-set atomically (§4.I). On any failure the
// snapshotted change-set is restored into whatever the session's current
// change-set has become (so a concurrent Insert/Delete during the failed
// Save is never clobbered), leaving the session otherwise as if Save had
// never been called.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.isSaving {
		s.mu.Unlock()
		return ErrConcurrentSaveNotAllowed
	}
	inserts := s.inserts
	deletes := s.deletes
	s.inserts = make(map[changeKey]pendingRecord)
	s.deletes = make(map[changeKey]pendingRecord)
	s.autosaveScheduled = false
	if len(inserts) == 0 && len(deletes) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.isSaving = true
	s.mu.Unlock()

	err := s.commit(ctx, inserts, deletes)

	s.mu.Lock()
	s.isSaving = false
	if err != nil {
		for k, v := range inserts {
			if _, exists := s.inserts[k]; !exists {
				s.inserts[k] = v
			}
		}
		for k, v := range deletes {
			if _, exists := s.deletes[k]; !exists {
				s.deletes[k] = v
			}
		}
	}
	s.mu.Unlock()
	return err
}

// commit groups the snapshot by (type, resolved partition), opens one
// driver transaction, and runs every group's record-codec and
// index-maintainer writes against it.
func (s *Session) commit(ctx context.Context, inserts, deletes map[changeKey]pendingRecord) error {
	groups, err := s.groupByPartition(ctx, inserts, deletes)
	if err != nil {
		return err
	}

	return s.cfg.Driver.Run(ctx, s.cache, txn.Options{Writable: true, TrackOnCommit: true}, func(ctx context.Context, tx kv.Transaction) error {
		for _, g := range groups {
			if err := s.saveGroup(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Session) groupByPartition(ctx context.Context, inserts, deletes map[changeKey]pendingRecord) ([]*changeGroup, error) {
	byKey := make(map[string]*changeGroup)
	var order []string

	place := func(rec pendingRecord, isDelete bool) error {
		td, ok := s.cfg.Registry.TypeByName(rec.typeName)
		if !ok {
			return fmt.Errorf("session: %w: %s", ErrUnregisteredType, rec.typeName)
		}
		var binding *directory.Binding
		if td.Directory.HasDynamic() {
			binding = td.Binder(rec.value)
		}
		prefix, err := s.cfg.Resolver.Resolve(ctx, td.Directory, binding)
		if err != nil {
			return fmt.Errorf("session: resolving directory for %s: %w", rec.typeName, err)
		}

		gkey := rec.typeName + "\x00" + string(prefix)
		g, ok := byKey[gkey]
		if !ok {
			g = &changeGroup{typeName: rec.typeName, prefix: prefix}
			byKey[gkey] = g
			order = append(order, gkey)
		}
		if isDelete {
			g.deletes = append(g.deletes, rec)
		} else {
			g.inserts = append(g.inserts, rec)
		}
		return nil
	}

	for _, rec := range inserts {
		if err := place(rec, false); err != nil {
			return nil, err
		}
	}
	for _, rec := range deletes {
		if err := place(rec, true); err != nil {
			return nil, err
		}
	}

	out := make([]*changeGroup, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out, nil
}

// saveGroup runs one group's writes against tx: serialize and write each
// insert's item key and index entries, and clear each delete's item key and
// index entries. Polymorphic protocol members are dual-written/cleared
// alongside.
func (s *Session) saveGroup(ctx context.Context, tx kv.Transaction, g *changeGroup) error {
	td, ok := s.cfg.Registry.TypeByName(g.typeName)
	if !ok {
		return fmt.Errorf("session: %w: %s", ErrUnregisteredType, g.typeName)
	}

	maintainers, err := s.buildMaintainers(ctx, tx, td, g.prefix)
	if err != nil {
		return err
	}
	blobs, err := blobSubspace(g.prefix)
	if err != nil {
		return err
	}

	var protocolPrefix []byte
	if td.Protocol != nil {
		protocolPrefix, err = s.resolveProtocolDirectory(ctx, td.Protocol.Protocol)
		if err != nil {
			return err
		}
	}

	for _, rec := range g.inserts {
		if err := s.cfg.Security.CanWrite(ctx, td.Name, rec.id); err != nil {
			return err
		}

		key, err := itemKey(g.prefix, td.Name, rec.id)
		if err != nil {
			return err
		}
		existingRaw, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		var old any
		if existingRaw != nil {
			old, err = s.decodeExisting(ctx, tx, td, blobs, existingRaw)
			if err != nil {
				return err
			}
		}

		plan, err := recordcodec.BuildPlan(rec.value)
		if err != nil {
			return fmt.Errorf("session: serializing %s: %w", td.Name, err)
		}
		if err := recordcodec.WriteChunks(tx, blobs, plan); err != nil {
			return err
		}
		tx.Set(key, plan.ItemValue)

		for _, m := range maintainers {
			if err := m.Update(ctx, tx, old, rec.value, rec.id); err != nil {
				return err
			}
		}

		if td.Protocol != nil {
			if err := polymorphic.DualWrite(tx, g.prefix, protocolPrefix, td.Protocol.TypeCode, rec.id, plan.ItemValue); err != nil {
				return err
			}
		}
	}

	for _, rec := range g.deletes {
		if err := s.cfg.Security.CanWrite(ctx, td.Name, rec.id); err != nil {
			return err
		}

		key, err := itemKey(g.prefix, td.Name, rec.id)
		if err != nil {
			return err
		}
		existingRaw, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if existingRaw == nil {
			continue
		}
		old, err := s.decodeExisting(ctx, tx, td, blobs, existingRaw)
		if err != nil {
			return err
		}

		if err := recordcodec.ClearChunks(tx, blobs, existingRaw); err != nil {
			return err
		}
		tx.Clear(key)

		for _, m := range maintainers {
			if err := m.Update(ctx, tx, old, nil, rec.id); err != nil {
				return err
			}
		}

		if td.Protocol != nil {
			if err := polymorphic.DualClear(tx, g.prefix, protocolPrefix, td.Protocol.TypeCode, rec.id); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildMaintainers resolves each declared index's current state before
// constructing its Maintainer. A dynamic-directory type's partitions are
// never visited by the init-time Reconciler (it has no record to resolve a
// prefix from), so its indexes instead reach Readable lazily here, the
// first time a write resolves a given partition (schema.EnsureIndexState).
// A static-directory type was already reconciled at container startup, so
// its state is only ever read.
func (s *Session) buildMaintainers(ctx context.Context, tx kv.Transaction, td schema.TypeDescriptor, prefix []byte) ([]*index.Maintainer, error) {
	maintainers := make([]*index.Maintainer, 0, len(td.Indexes))
	for _, desc := range td.Indexes {
		subspace, err := indexSubspace(prefix, desc.Name)
		if err != nil {
			return nil, err
		}
		var state index.State
		if td.Directory.HasDynamic() {
			state, err = schema.EnsureIndexState(ctx, tx, prefix, desc.Name)
		} else {
			state, err = schema.ReadIndexState(ctx, tx, prefix, desc.Name)
		}
		if err != nil {
			return nil, err
		}
		maintainers = append(maintainers, index.NewMaintainer(subspace, desc, state))
	}
	return maintainers, nil
}

func (s *Session) decodeExisting(ctx context.Context, tx kv.Transaction, td schema.TypeDescriptor, blobs []byte, itemValue []byte) (any, error) {
	raw, err := recordcodec.Load(ctx, tx, blobs, itemValue)
	if err != nil {
		return nil, err
	}
	return recordcodec.DeserializeAny(raw, td.New)
}

func (s *Session) resolveProtocolDirectory(ctx context.Context, protocolName string) ([]byte, error) {
	pd, ok := s.cfg.Registry.ProtocolByName(protocolName)
	if !ok {
		return nil, fmt.Errorf("session: undeclared protocol %s", protocolName)
	}
	return s.cfg.Resolver.Resolve(ctx, pd.Directory, nil)
}
