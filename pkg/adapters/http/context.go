package http

import (
	"context"

	"github.com/aretw0/sessionstore/pkg/domain"
)

type ctxKey struct{}

// requestSession is what the middleware keeps for the current request.
type requestSession struct {
	id   string
	sess *domain.Session
	opts *domain.Options

	// dropRequested is set by Drop, so a drop the handler asked for is
	// never mistaken for the drop-by-default setting.
	dropRequested bool
}

func withRequestSession(ctx context.Context, rs *requestSession) context.Context {
	return context.WithValue(ctx, ctxKey{}, rs)
}

func fromContext(ctx context.Context) *requestSession {
	rs, _ := ctx.Value(ctxKey{}).(*requestSession)
	return rs
}

// FromContext returns the session loaded by the middleware, or nil outside it.
func FromContext(ctx context.Context) *domain.Session {
	if rs := fromContext(ctx); rs != nil {
		return rs.sess
	}
	return nil
}

// OptionsFromContext returns the options the session will be committed with.
// Handlers change them in place, e.g. to renew or defer the session. Under
// drop-by-default a renewing handler that still wants the session gone must
// call Drop, since Drop is already true in the options it sees.
func OptionsFromContext(ctx context.Context) *domain.Options {
	if rs := fromContext(ctx); rs != nil {
		return rs.opts
	}
	return nil
}

// Drop deletes the session when the response is committed and suppresses
// the cookie. It wins over Renew, also when dropping is the default.
func Drop(ctx context.Context) {
	if rs := fromContext(ctx); rs != nil {
		rs.opts.Drop = true
		rs.dropRequested = true
	}
}

// Renew moves the session to a new id when the response is committed.
// With drop-by-default enabled it keeps the session unless Drop was called.
func Renew(ctx context.Context) {
	if rs := fromContext(ctx); rs != nil {
		rs.opts.Renew = true
	}
}

// IDFromContext returns the id the session was loaded under.
// It is empty when the backend could not be reached.
func IDFromContext(ctx context.Context) string {
	if rs := fromContext(ctx); rs != nil {
		return rs.id
	}
	return ""
}
