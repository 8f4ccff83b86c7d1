package api

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.get(ctx, "/users/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile returns the stored profile. Servers that answer with an
// empty body get the submitted one back.
func (c *Client) UpdateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	out := profile
	if err := c.send(ctx, http.MethodPut, "/users/profile", nil, profile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
