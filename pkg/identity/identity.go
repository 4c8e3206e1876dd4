// Package identity resolves which coach or client a request acts as. The
// platform's auth gateway authenticates callers and forwards the resolved
// identity in headers; this package only reads that result, it does not
// authenticate anything itself.
package identity

import (
	"net/http"

	apperrors "coachdesk/pkg/errors"
	"coachdesk/pkg/model"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor is the resolved caller: who they are and whether they act as the
// coach or the client side of a session.
type Actor struct {
	ID   string
	Role model.Role
}

// FromRequest extracts the acting identity from the gateway headers.
func FromRequest(r *http.Request) (Actor, error) {
	id := r.Header.Get(HeaderActorID)
	if id == "" {
		return Actor{}, apperrors.Unauthorized("missing " + HeaderActorID + " header")
	}

	role := model.Role(r.Header.Get(HeaderActorRole))
	if role != model.RoleCoach && role != model.RoleClient {
		return Actor{}, apperrors.Unauthorized("role must be 'coach' or 'client'")
	}

	return Actor{ID: id, Role: role}, nil
}

// ActorExtractor keys rate limiting on the acting identity.
func ActorExtractor(r *http.Request) string {
	return r.Header.Get(HeaderActorID)
}
