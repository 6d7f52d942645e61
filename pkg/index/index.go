package index

import (
	"context"
	"fmt"

	"github.com/cuemby/objstore/pkg/kv"
	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/obs/metrics"
	"github.com/cuemby/objstore/pkg/tuple"
)

// State is a declared index's build/rollout state. Transitions are
// one-directional: Disabled -> WriteOnly -> Readable. Queries may use only
// Readable indexes; writers maintain WriteOnly and Readable identically.
type State int

const (
	Disabled State = iota
	WriteOnly
	Readable
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case WriteOnly:
		return "write_only"
	case Readable:
		return "readable"
	default:
		return "unknown"
	}
}

// Kind distinguishes a scalar (multi-record) index from a unique one.
type Kind int

const (
	Scalar Kind = iota
	Unique
)

// KeyExpr computes the ordered key-expression tuple an index derives from a
// record. A (nil, false) result means the expression is sparse for this
// record: no entry is emitted and deletes of such records skip this index.
type KeyExpr func(record any) (tuple.Tuple, bool)

// Descriptor declares one index on a record type.
type Descriptor struct {
	Name string
	Kind Kind
	Expr KeyExpr
}

// violationsMarker is the reserved leading element separating a unique
// index's uniqueness-violation entries from its ordinary key-expression
// entries, which share the same subspace.
var violationsMarker = "__violations__"

// Maintainer performs in-transaction index upkeep for one Descriptor,
// rooted at an already-resolved index subspace prefix.
type Maintainer struct {
	subspace []byte
	desc     Descriptor
	state    State
}

// NewMaintainer builds a Maintainer over subspace (the directory-resolved
// `<index-subspace>` prefix) in the given initial state.
func NewMaintainer(subspace []byte, desc Descriptor, state State) *Maintainer {
	return &Maintainer{subspace: append([]byte(nil), subspace...), desc: desc, state: state}
}

// Name returns the index's declared name.
func (m *Maintainer) Name() string { return m.desc.Name }

// State returns the maintainer's current index state.
func (m *Maintainer) State() State { return m.state }

// SetState advances the maintainer's in-memory state. Persisting the
// transition to the metadata subspace is the schema registry's
// responsibility (§3.1).
func (m *Maintainer) SetState(s State) { m.state = s }

// ComputeKeys returns the full storage key(s) a record/id pair would occupy
// in this index, without performing any writes. Used for auditing.
func (m *Maintainer) ComputeKeys(record any, id tuple.Tuple) ([][]byte, error) {
	expr, ok := m.desc.Expr(record)
	if !ok {
		return nil, nil
	}
	key, err := m.entryKey(expr, id)
	if err != nil {
		return nil, err
	}
	return [][]byte{key}, nil
}

// Update performs this index's write for a record transitioning from old to
// new within tx. Either may be nil (pure insert / pure delete). Both the
// clear and the add occur in the caller's transaction, so index state is
// atomic with the record write.
func (m *Maintainer) Update(ctx context.Context, tx kv.Transaction, old, new any, id tuple.Tuple) error {
	if m.state == Disabled {
		return nil
	}
	if old != nil {
		if err := m.clear(tx, old, id); err != nil {
			return err
		}
	}
	if new != nil {
		if err := m.add(ctx, tx, new, id); err != nil {
			return err
		}
	}
	return nil
}

// Scan is the additive-only form used by online re-indexing: equivalent to
// Update(nil, record, id).
func (m *Maintainer) Scan(ctx context.Context, tx kv.Transaction, record any, id tuple.Tuple) error {
	return m.Update(ctx, tx, nil, record, id)
}

func (m *Maintainer) clear(tx kv.Transaction, record any, id tuple.Tuple) error {
	expr, ok := m.desc.Expr(record)
	if !ok {
		return nil
	}
	key, err := m.entryKey(expr, id)
	if err != nil {
		return err
	}
	tx.Clear(key)
	return nil
}

func (m *Maintainer) add(ctx context.Context, tx kv.Transaction, record any, id tuple.Tuple) error {
	expr, ok := m.desc.Expr(record)
	if !ok {
		return nil
	}
	key, err := m.entryKey(expr, id)
	if err != nil {
		return err
	}

	if m.desc.Kind != Unique {
		tx.Set(key, []byte{})
		return nil
	}

	idBytes, err := tuple.Encode(id)
	if err != nil {
		return fmt.Errorf("index %s: encoding id: %w", m.desc.Name, err)
	}

	existing, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil && string(existing) != string(idBytes) {
		if err := m.recordViolation(tx, expr, id); err != nil {
			return err
		}
		if m.state == Readable {
			log.WithIndex("index", m.desc.Name).Warn().Msg("rejecting write: uniqueness violation on readable index")
			return fmt.Errorf("%w: index %s", ErrUniquenessViolation, m.desc.Name)
		}
		log.WithIndex("index", m.desc.Name).Warn().Msg("recording uniqueness violation on write-only index, write proceeds")
	}
	tx.Set(key, idBytes)
	return nil
}

func (m *Maintainer) recordViolation(tx kv.Transaction, duplicateKey tuple.Tuple, id tuple.Tuple) error {
	key, err := m.violationKey(duplicateKey, id)
	if err != nil {
		return err
	}
	tx.Set(key, []byte{})
	metrics.IndexViolationsTotal.WithLabelValues(m.desc.Name).Inc()
	return nil
}

// entryKey builds the storage key for one index entry. For a Unique index
// the id is not part of the key — it lives in the value, so the key alone
// enforces uniqueness structurally. For a Scalar index the id is appended
// so multiple records may share the same key-expression.
func (m *Maintainer) entryKey(expr tuple.Tuple, id tuple.Tuple) ([]byte, error) {
	exprBytes, err := tuple.Encode(expr)
	if err != nil {
		return nil, fmt.Errorf("index %s: encoding key-expression: %w", m.desc.Name, err)
	}
	key := append(append([]byte{}, m.subspace...), exprBytes...)
	if m.desc.Kind == Unique {
		return key, nil
	}
	idBytes, err := tuple.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("index %s: encoding id: %w", m.desc.Name, err)
	}
	return append(key, idBytes...), nil
}

func (m *Maintainer) violationKey(duplicateKey tuple.Tuple, id tuple.Tuple) ([]byte, error) {
	encoded, err := tuple.Encode(tuple.Tuple{violationsMarker, duplicateKey, id})
	if err != nil {
		return nil, fmt.Errorf("index %s: encoding violation key: %w", m.desc.Name, err)
	}
	return append(append([]byte{}, m.subspace...), encoded...), nil
}

// Violation is one recorded uniqueness conflict: two or more ids that
// resolved to the same key-expression value on a Unique index.
type Violation struct {
	DuplicateKey tuple.Tuple
	ID           tuple.Tuple
}

// Violations range-scans this index's recorded uniqueness violations (the
// reserved __violations__ slice of its subspace), for the admin CLI's
// `index violations` subcommand.
func (m *Maintainer) Violations(ctx context.Context, tx kv.Transaction) ([]Violation, error) {
	head, err := tuple.Encode(tuple.Tuple{violationsMarker})
	if err != nil {
		return nil, fmt.Errorf("index %s: encoding violations prefix: %w", m.desc.Name, err)
	}
	subspace := append(append([]byte{}, m.subspace...), head...)
	begin, end := tuple.Range(subspace)
	it, err := tx.GetRange(ctx, begin, end, 0, true, kv.StreamingModeIterator)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for it.Next() {
		item := it.Item()
		if len(item.Key) <= len(subspace) {
			continue
		}
		elements, err := tuple.Decode(item.Key[len(subspace):])
		if err != nil || len(elements) < 2 {
			continue
		}
		dup, ok1 := elements[0].(tuple.Tuple)
		id, ok2 := elements[1].(tuple.Tuple)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, Violation{DuplicateKey: dup, ID: id})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
