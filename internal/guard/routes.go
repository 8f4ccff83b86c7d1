package guard

import (
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Route is a storefront view. Public routes skip the guard entirely.
type Route struct {
	Pattern string
	Public  bool
	Roles   []domain.Role
}

var shopperRoles = []domain.Role{domain.RoleClient, domain.RoleAdmin}

var Routes = []Route{
	{Pattern: "/", Public: true},
	{Pattern: "/login", Public: true},
	{Pattern: "/register", Public: true},
	{Pattern: "/products", Public: true},
	{Pattern: "/products/{id}", Public: true},
	{Pattern: "/cart", Public: true},
	{Pattern: "/profile", Roles: shopperRoles},
	{Pattern: "/checkout", Roles: shopperRoles},
}

// Lookup finds the route for a concrete path. Path segments written as
// {name} in a pattern match any single non-empty segment.
func Lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if matchPattern(r.Pattern, path) {
			return r, true
		}
	}
	return Route{}, false
}

// Evaluate applies Decide to a path. Unknown paths are treated as public.
func Evaluate(path string, user *domain.Identity, resolving bool) Decision {
	r, ok := Lookup(path)
	if !ok || r.Public {
		return Allow
	}
	return Decide(user, resolving, r.Roles)
}

func matchPattern(pattern, path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	ps := strings.Split(pattern, "/")
	xs := strings.Split(path, "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], "{") && strings.HasSuffix(ps[i], "}") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
