// Storefront client: local gateway and command line for the remote shop API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/kvstore"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

// Version is set by -ldflags at build time.
var Version = "dev"

const usage = `usage: storefront <command> [args]

commands:
  serve                               run the local storefront gateway
  products                            list products
  search [name=..] [category=..] [min=..] [max=..]
  product <id>                        show one product
  categories                          list categories
  cart [show|add <id>|remove <id>|set <id> <qty>|clear]
  login <email> <password>
  register <username> <email> <password> [firstname] [lastname]
  logout
  whoami
  checkout [--yes]                    review the cart, place the order with --yes
  profile [show|update key=value...]
  version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "--version", "-v", "version":
		fmt.Println("storefront " + Version)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd == "serve" {
		if err := serve(ctx, cfg); err != nil {
			log.Fatalf("serve: %v", err)
		}
		return
	}

	app, err := openApp(ctx, cfg, session.NavigatorFunc(func(_ context.Context, path string) {
		fmt.Printf("-> %s\n", path)
	}))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	err = run(ctx, app, cmd, args)
	if errClose := app.Close(); errClose != nil {
		log.Printf("close error: %v \n", errClose)
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context, cfg *config.Config, nav session.Navigator) (*storefront.App, error) {
	storage, err := kvstore.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, err
	}
	return storefront.New(ctx, cfg, storage, nav), nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	app, err := openApp(ctx, cfg, gateway.Navigator{})
	if err != nil {
		return err
	}
	defer app.Close()

	// CLI invocations write the same sqlite file; pick their changes up.
	if cfg.Storage.Backend == kvstore.BackendSQLite {
		watcher, err := kvstore.NewWatcher(cfg.Storage.Path, 200*time.Millisecond, func() {
			if err := app.Reload(ctx); err != nil {
				log.Printf("reload after storage change error: %v \n", err)
			}
		})
		if err != nil {
			log.Printf("storage watcher disabled: %v \n", err)
		} else {
			defer watcher.Close()
		}
	}

	return gateway.Run(ctx, app, gateway.Config{
		HTTPPort:           cfg.HTTPPort,
		AllowedOrigin:      cfg.FEURL,
		RequestTimeout:     cfg.RequestTimeout,
		ShutdownTimeout:    cfg.ShutdownTimeout,
		MaxRequestBodySize: 1 << 20, // 1MB
	})
}
