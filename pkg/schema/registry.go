package schema

import (
	"fmt"
	"reflect"

	"github.com/cuemby/objstore/pkg/directory"
)

// Registry is the validated, immutable set of declared types and protocols
// a container is built from (§3.1).
type Registry struct {
	version   Version
	types     map[string]TypeDescriptor
	protocols map[string]ProtocolDescriptor
}

// NewRegistry validates types and protocols and builds a Registry.
// Validation (construction-time, fatal on failure):
//   - no two types share the same Name;
//   - every dynamic directory segment on a type references a field the type
//     declared in Fields;
//   - every polymorphic protocol directory uses only static segments.
func NewRegistry(version Version, types []TypeDescriptor, protocols []ProtocolDescriptor) (*Registry, error) {
	typeMap := make(map[string]TypeDescriptor, len(types))
	for _, td := range types {
		if _, exists := typeMap[td.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, td.Name)
		}
		if err := validateDynamicFields(td); err != nil {
			return nil, err
		}
		typeMap[td.Name] = td
	}

	protocolMap := make(map[string]ProtocolDescriptor, len(protocols))
	for _, pd := range protocols {
		if err := directory.ValidatePolymorphic(pd.Directory); err != nil {
			return nil, fmt.Errorf("schema: protocol %s: %w", pd.Name, err)
		}
		protocolMap[pd.Name] = pd
	}

	return &Registry{version: version, types: typeMap, protocols: protocolMap}, nil
}

func validateDynamicFields(td TypeDescriptor) error {
	declared := make(map[string]bool, len(td.Fields))
	for _, f := range td.Fields {
		declared[f] = true
	}
	for _, name := range td.Directory.DynamicFieldNames() {
		if !declared[name] {
			return fmt.Errorf("%w: type %s references %q", ErrUndeclaredField, td.Name, name)
		}
	}
	return nil
}

// Version returns the registry's declared schema version.
func (r *Registry) Version() Version { return r.version }

// TypeByName returns the descriptor for name, or false if undeclared.
func (r *Registry) TypeByName(name string) (TypeDescriptor, bool) {
	td, ok := r.types[name]
	return td, ok
}

// ProtocolByName returns the descriptor for name, or false if undeclared.
func (r *Registry) ProtocolByName(name string) (ProtocolDescriptor, bool) {
	pd, ok := r.protocols[name]
	return pd, ok
}

// Types returns every declared type descriptor, in no particular order.
func (r *Registry) Types() []TypeDescriptor {
	out := make([]TypeDescriptor, 0, len(r.types))
	for _, td := range r.types {
		out = append(out, td)
	}
	return out
}

// Protocols returns every declared protocol descriptor, in no particular
// order.
func (r *Registry) Protocols() []ProtocolDescriptor {
	out := make([]ProtocolDescriptor, 0, len(r.protocols))
	for _, pd := range r.protocols {
		out = append(out, pd)
	}
	return out
}

// TypeByInstance finds the declared type descriptor whose New() factory
// produces record's concrete Go type, so a session can file an Insert/Delete
// call under the right type name without the caller naming it explicitly.
func (r *Registry) TypeByInstance(record any) (TypeDescriptor, bool) {
	want := reflect.TypeOf(record)
	for _, td := range r.types {
		if reflect.TypeOf(td.New()) == want {
			return td, true
		}
	}
	return TypeDescriptor{}, false
}

// TypeCodesForProtocol returns the type-code-to-type-name inverse mapping
// for protocolName, used to dispatch a polymorphic fetch.
func (r *Registry) TypeCodesForProtocol(protocolName string) map[int]string {
	pd, ok := r.protocols[protocolName]
	if !ok {
		return nil
	}
	out := make(map[int]string, len(pd.TypeCodes))
	for name, code := range pd.TypeCodes {
		out[code] = name
	}
	return out
}
