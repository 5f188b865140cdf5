package client

import (
	"context"

	"github.com/krisalay/estate-cache/logger"
	"github.com/krisalay/estate-cache/session"
)

// Redirector sends the user to a login route. A CLI prints it, the gateway
// returns it to the browser.
type Redirector interface {
	Redirect(ctx context.Context, realm session.Realm, route string)
}

type RedirectFunc func(ctx context.Context, realm session.Realm, route string)

func (f RedirectFunc) Redirect(ctx context.Context, realm session.Realm, route string) {
	f(ctx, realm, route)
}

// LoginRoutes holds the login route of each realm.
type LoginRoutes struct {
	User  string
	Admin string
}

func (r LoginRoutes) For(realm session.Realm) string {
	if realm == session.Admin {
		return r.Admin
	}
	return r.User
}

/*
AuthPolicy is the single place that reacts to authentication failures.
On an auth error it clears the realm's stored token and redirects to the
realm's login route. Every other outcome passes through untouched.
*/
type AuthPolicy struct {
	sessions   session.Store
	routes     LoginRoutes
	redirector Redirector
	log        logger.Logger
}

func NewAuthPolicy(
	sessions session.Store,
	routes LoginRoutes,
	redirector Redirector,
	log logger.Logger,
) *AuthPolicy {

	if log == nil {
		log = logger.Nop()
	}
	return &AuthPolicy{
		sessions:   sessions,
		routes:     routes,
		redirector: redirector,
		log:        log,
	}
}

func (p *AuthPolicy) LoginRoute(realm session.Realm) string {
	return p.routes.For(realm)
}

func (p *AuthPolicy) Handle(ctx context.Context, realm session.Realm, err error) Result {
	res := ResultOf(err)
	if res.Outcome != OutcomeAuthError {
		return res
	}

	route := p.routes.For(realm)
	p.log.WarnContext(ctx, "Authentication failed, clearing session", map[string]interface{}{
		"realm":    realm.String(),
		"kind":     KindOf(err).String(),
		"redirect": route,
	})

	if p.sessions != nil {
		if cerr := p.sessions.Clear(realm); cerr != nil {
			p.log.ErrorContext(ctx, "Failed to clear session token", map[string]interface{}{
				"realm": realm.String(),
				"error": cerr.Error(),
			})
		}
	}
	if p.redirector != nil {
		p.redirector.Redirect(ctx, realm, route)
	}
	return res
}
