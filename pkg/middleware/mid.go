package middleware

import (
	"errors"

	"storefront/pkg/hmacauth"
)

// DefaultMaxBodyBytes caps internal request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Mid carries the dependencies of the authenticating middleware.
type Mid struct {
	verifier *hmacauth.Verifier
	maxBody  int64
}

// Option configures a Mid.
type Option func(*Mid)

// WithMaxBodyBytes sets the largest body VerifyInternalService will buffer.
// Values below one keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(m *Mid) {
		if n > 0 {
			m.maxBody = n
		}
	}
}

func NewMid(v *hmacauth.Verifier, opts ...Option) (*Mid, error) {
	if v == nil {
		return nil, errors.New("verifier cannot be nil")
	}
	m := &Mid{verifier: v, maxBody: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}
