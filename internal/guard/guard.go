// Package guard decides whether a view may render for the current session.
package guard

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Decision int

const (
	Pending Decision = iota
	Allow
	RedirectLogin
	RedirectHome
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	default:
		return "unknown"
	}
}

// Target is the path a redirect decision points to, or "" for the others.
func (d Decision) Target() string {
	switch d {
	case RedirectLogin:
		return LoginPath
	case RedirectHome:
		return HomePath
	default:
		return ""
	}
}

// Decide never redirects while the session is still resolving. An empty
// requiredRoles only demands that someone is logged in.
func Decide(user *domain.Identity, resolving bool, requiredRoles []domain.Role) Decision {
	if resolving {
		return Pending
	}
	if user == nil {
		return RedirectLogin
	}
	if len(requiredRoles) > 0 && !user.HasAnyRole(requiredRoles) {
		return RedirectHome
	}
	return Allow
}
