package security

import "errors"

// ErrSecurityDenied wraps every denial a Delegate returns, so callers can
// test for "was this a security denial" with errors.Is regardless of which
// delegate implementation produced it.
var ErrSecurityDenied = errors.New("security: access denied")
