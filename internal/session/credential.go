package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/kvstore"
)

// CredentialKey is the key the credential owns in durable storage.
const CredentialKey = "token"

// KVCredentials keeps the bearer token in a kvstore.
type KVCredentials struct {
	storage kvstore.Store
}

func NewKVCredentials(storage kvstore.Store) *KVCredentials {
	return &KVCredentials{storage: storage}
}

func (c *KVCredentials) Credential(ctx context.Context) (string, error) {
	token, err := c.storage.Get(ctx, CredentialKey)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && token == "") {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("get credential: %w", err)
	}
	return token, nil
}

func (c *KVCredentials) SaveCredential(ctx context.Context, token string) error {
	if err := c.storage.Set(ctx, CredentialKey, token); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (c *KVCredentials) RemoveCredential(ctx context.Context) error {
	if err := c.storage.Remove(ctx, CredentialKey); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}
