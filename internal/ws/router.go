package ws

import (
	"strings"

	"github.com/avgrelay/relay/internal/config"
)

// Role is the part a stream plays for its whole lifetime. It is decided
// once by the Router when the stream is accepted.
type Role int

const (
	RoleUnknown Role = iota
	RoleSender
	RoleListener
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleListener:
		return "listener"
	default:
		return "unknown"
	}
}

// Router classifies accepted streams by route selector.
type Router struct {
	send   string
	listen string
}

func NewRouter(routes config.RoutesConfig) *Router {
	return &Router{
		send:   normalizeRoute(routes.Send),
		listen: normalizeRoute(routes.Listen),
	}
}

// Classify maps a route selector to a role. Selectors that match neither
// route yield RoleUnknown.
func (rt *Router) Classify(selector string) Role {
	switch normalizeRoute(selector) {
	case rt.send:
		return RoleSender
	case rt.listen:
		return RoleListener
	default:
		return RoleUnknown
	}
}

// normalizeRoute drops a trailing slash so "/send/" and "/send" match.
func normalizeRoute(route string) string {
	if len(route) > 1 {
		return strings.TrimSuffix(route, "/")
	}
	return route
}
