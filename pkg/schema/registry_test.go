package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objstore/pkg/directory"
)

func TestNewRegistryRejectsDuplicateTypeNames(t *testing.T) {
	_, err := NewRegistry(Version{1, 0, 0}, []TypeDescriptor{
		{Name: "widget", Directory: directory.Path{directory.Lit("widgets")}},
		{Name: "widget", Directory: directory.Path{directory.Lit("other")}},
	}, nil)
	assert.ErrorIs(t, err, ErrDuplicateType)
}

func TestNewRegistryRejectsUndeclaredDynamicField(t *testing.T) {
	_, err := NewRegistry(Version{1, 0, 0}, []TypeDescriptor{
		{Name: "widget", Directory: directory.Path{directory.Lit("widgets"), directory.Field("tenant")}, Fields: nil},
	}, nil)
	assert.ErrorIs(t, err, ErrUndeclaredField)
}

func TestNewRegistryAcceptsDeclaredDynamicField(t *testing.T) {
	r, err := NewRegistry(Version{1, 0, 0}, []TypeDescriptor{
		{Name: "widget", Directory: directory.Path{directory.Lit("widgets"), directory.Field("tenant")}, Fields: []string{"tenant"}},
	}, nil)
	require.NoError(t, err)
	td, ok := r.TypeByName("widget")
	assert.True(t, ok)
	assert.Equal(t, "widget", td.Name)
}

func TestNewRegistryRejectsDynamicProtocolDirectory(t *testing.T) {
	_, err := NewRegistry(Version{1, 0, 0}, nil, []ProtocolDescriptor{
		{Name: "shape", Directory: directory.Path{directory.Lit("shapes"), directory.Field("tenant")}},
	})
	assert.ErrorIs(t, err, directory.ErrPolymorphicDynamicSegment)
}

func TestTypeCodesForProtocolInvertsMapping(t *testing.T) {
	r, err := NewRegistry(Version{1, 0, 0}, nil, []ProtocolDescriptor{
		{Name: "shape", Directory: directory.Path{directory.Lit("shapes")}, TypeCodes: map[string]int{"circle": 1, "square": 2}},
	})
	require.NoError(t, err)
	codes := r.TypeCodesForProtocol("shape")
	assert.Equal(t, "circle", codes[1])
	assert.Equal(t, "square", codes[2])
}

func TestProtocolByNameMissingReturnsFalse(t *testing.T) {
	r, err := NewRegistry(Version{1, 0, 0}, nil, nil)
	require.NoError(t, err)
	_, ok := r.ProtocolByName("missing")
	assert.False(t, ok)
}
