package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	return c.send(ctx, http.MethodPost, "/auth/register", nil, reg, nil)
}

// Login authenticates and persists the returned token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error) {
	var res domain.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", nil, creds, &res); err != nil {
		return nil, err
	}
	if res.Token != "" && c.creds != nil {
		if err := c.creds.SaveCredential(ctx, res.Token); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}
	return &res, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	return c.creds.RemoveCredential(ctx)
}
