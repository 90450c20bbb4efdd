// Package session carries the authenticated caller through request handling.
// Handlers build a Session from the verified bearer token and pass it to use
// cases explicitly; nothing reads identity from ambient state.
package session

import "context"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Session struct {
	UserID string
	Role   string
}

func (s Session) IsZero() bool {
	return s.UserID == ""
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
