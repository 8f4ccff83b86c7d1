// Package storefront wires the cart, session, guard and API client into the
// flows the views drive: login, logout, add to cart and checkout.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/guard"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type App struct {
	API      *api.Client
	Cart     *cart.Store
	Session  *session.Store
	Checkout *checkout.Service

	storage   kvstore.Store
	decoder   session.Decoder
	publisher *events.Publisher
	currency  currency.Unit
}

// New builds the app over storage and resolves the persisted session. The
// app owns storage from here on.
func New(ctx context.Context, cfg *config.Config, storage kvstore.Store, nav session.Navigator) *App {
	creds := session.NewKVCredentials(storage)
	decoder := session.NewJWTDecoder(cfg.JWTSecret)

	a := &App{
		Cart:     cart.NewStore(ctx, storage),
		Session:  session.NewStore(creds, decoder, nav, session.WithClearInvalidCredential(cfg.ClearInvalidCredential)),
		storage:  storage,
		decoder:  decoder,
		currency: cfg.CurrencyUnit(),
	}
	// token writes go through the session so Reload can tell them apart
	// from other processes' writes
	a.API = api.NewClient(cfg.APIBaseURL, a.Session, cfg.RequestTimeout)
	a.Checkout = checkout.NewService(a.Cart, a.Session, a.API)

	if err := a.Session.Resolve(ctx); err != nil {
		log.Printf("session resolve error: %v \n", err)
	}

	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		a.publisher.Attach(a.Cart, a.principal)
		a.publisher.Start(ctx)
	}
	return a
}

func (a *App) principal() string {
	if u := a.Session.CurrentUser(); u != nil {
		return u.PrincipalName
	}
	return ""
}

// Login authenticates against the API, which persists the token, then sets
// the session identity from the response. A response without username or
// role falls back to the token claims.
func (a *App) Login(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	res, err := a.API.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	user := res.Identity()
	if user.PrincipalName == "" || user.Role == "" {
		decoded, errDecode := a.decoder.Decode(res.Token)
		if errDecode != nil {
			return nil, fmt.Errorf("login response: %w", errDecode)
		}
		user = *decoded
	}

	a.Session.Login(user)
	return &user, nil
}

func (a *App) Register(ctx context.Context, reg domain.Registration) error {
	return a.API.Register(ctx, reg)
}

func (a *App) Logout(ctx context.Context) error {
	return a.Session.Logout(ctx)
}

// AddToCart fetches the product so the line item snapshots the current price.
func (a *App) AddToCart(ctx context.Context, id domain.ProductID) error {
	p, err := a.API.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("get product %s: %w", id, err)
	}
	return a.Cart.Add(ctx, *p)
}

func (a *App) Guard(path string) guard.Decision {
	st := a.Session.State()
	return guard.Evaluate(path, st.User, st.Resolving)
}

// Reload re-reads cart and credential after another process changed storage.
func (a *App) Reload(ctx context.Context) error {
	return errors.Join(a.Cart.Reload(ctx), a.Session.Reload(ctx))
}

func (a *App) FormatPrice(amount decimal.Decimal) string {
	return domain.FormatPrice(amount, a.currency)
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.storage.Close())
	return errors.Join(errs...)
}
