package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowAllPermitsEverything(t *testing.T) {
	var d Delegate = AllowAll{}
	assert.NoError(t, d.CanRead(context.Background(), "widget", []any{int64(1)}))
	assert.NoError(t, d.CanWrite(context.Background(), "widget", []any{int64(1)}))
}

func TestDenyDelegateDeniesEverything(t *testing.T) {
	var d Delegate = DenyDelegate{}
	assert.ErrorIs(t, d.CanRead(context.Background(), "widget", nil), ErrSecurityDenied)
	assert.ErrorIs(t, d.CanWrite(context.Background(), "widget", nil), ErrSecurityDenied)
}

func TestDenyDelegateIncludesReason(t *testing.T) {
	d := DenyDelegate{Reason: "no tenant context"}
	err := d.CanRead(context.Background(), "widget", nil)
	assert.ErrorContains(t, err, "no tenant context")
}

func TestPredicateDelegateEvaluatesFunction(t *testing.T) {
	d := PredicateDelegate{
		ReadFn: func(ctx context.Context, typeName string, id []any) bool {
			return typeName == "widget"
		},
	}
	assert.NoError(t, d.CanRead(context.Background(), "widget", nil))
	assert.ErrorIs(t, d.CanRead(context.Background(), "gadget", nil), ErrSecurityDenied)
}

func TestPredicateDelegateNilFuncAllows(t *testing.T) {
	d := PredicateDelegate{}
	assert.NoError(t, d.CanRead(context.Background(), "widget", nil))
	assert.NoError(t, d.CanWrite(context.Background(), "widget", nil))
}
