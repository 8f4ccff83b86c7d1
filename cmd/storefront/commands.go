package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
)

var errUsage = errors.New("usage")

type cli struct {
	app *storefront.App
	out io.Writer
}

func run(ctx context.Context, app *storefront.App, cmd string, args []string) error {
	c := &cli{app: app, out: os.Stdout}
	return c.dispatch(ctx, cmd, args)
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "products":
		products, err := c.app.API.ListProducts(ctx)
		if err != nil {
			return err
		}
		c.printProducts(products)
	case "search":
		return c.search(ctx, args)
	case "product":
		if len(args) != 1 {
			return errUsage
		}
		p, err := c.app.API.GetProduct(ctx, domain.ProductID(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s  %s  %s\n", p.ID, p.Name, c.app.FormatPrice(p.Price))
		if p.Description != "" {
			fmt.Fprintln(c.out, p.Description)
		}
	case "categories":
		categories, err := c.app.API.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, cat := range categories {
			fmt.Fprintf(c.out, "%s\t%s\n", cat.ID, cat.Name)
		}
	case "cart":
		return c.cart(ctx, args)
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		user, err := c.app.Login(ctx, domain.Credentials{Email: args[0], Password: args[1]})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "logged in as %s (%s)\n", user.PrincipalName, user.Role)
	case "register":
		return c.register(ctx, args)
	case "logout":
		return c.app.Logout(ctx)
	case "whoami":
		if u := c.app.Session.CurrentUser(); u != nil {
			fmt.Fprintf(c.out, "%s (%s)\n", u.PrincipalName, u.Role)
		} else {
			fmt.Fprintln(c.out, "not logged in")
		}
	case "checkout":
		return c.checkout(ctx, args)
	case "profile":
		return c.profile(ctx, args)
	default:
		return errUsage
	}
	return nil
}

func (c *cli) search(ctx context.Context, args []string) error {
	values, err := keyValues(args, "name", "category", "min", "max")
	if err != nil {
		return err
	}
	filter, err := domain.NewSearchFilter(values["name"], values["category"], values["min"], values["max"])
	if err != nil {
		return err
	}
	products, err := c.app.API.SearchProducts(ctx, filter)
	if err != nil {
		return err
	}
	c.printProducts(products)
	return nil
}

func (c *cli) cart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}

	var err error
	switch {
	case args[0] == "show" && len(args) == 1:
	case args[0] == "add" && len(args) == 2:
		err = c.app.AddToCart(ctx, domain.ProductID(args[1]))
	case args[0] == "remove" && len(args) == 2:
		err = c.app.Cart.Remove(ctx, domain.ProductID(args[1]))
	case args[0] == "set" && len(args) == 3:
		err = c.app.Cart.SetQuantityText(ctx, domain.ProductID(args[1]), args[2])
	case args[0] == "clear" && len(args) == 1:
		err = c.app.Cart.Clear(ctx)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	c.printCart(c.app.Cart.LineItems())
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 5 {
		return errUsage
	}
	reg := domain.Registration{Username: args[0], Email: args[1], Password: args[2]}
	if len(args) > 3 {
		reg.FirstName = args[3]
	}
	if len(args) > 4 {
		reg.LastName = args[4]
	}
	if err := c.app.Register(ctx, reg); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "registered %s, now run: storefront login %s <password>\n", reg.Username, reg.Email)
	return nil
}

func (c *cli) checkout(ctx context.Context, args []string) error {
	if d := c.app.Guard("/checkout"); d.Target() != "" {
		fmt.Fprintf(c.out, "-> %s\n", d.Target())
		return fmt.Errorf("checkout requires login")
	}

	sum := c.app.Checkout.Summary()
	c.printCart(sum.Items)
	if len(args) == 0 || args[0] != "--yes" {
		fmt.Fprintln(c.out, "run `storefront checkout --yes` to place the order")
		return nil
	}

	order, err := c.app.Checkout.PlaceOrder(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "order %s placed (%s)\n", order.ID, order.Status)
	return nil
}

func (c *cli) profile(ctx context.Context, args []string) error {
	if d := c.app.Guard("/profile"); d.Target() != "" {
		fmt.Fprintf(c.out, "-> %s\n", d.Target())
		return fmt.Errorf("profile requires login")
	}

	p, err := c.app.API.GetProfile(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "update" {
		values, err := keyValues(args[1:], "firstname", "lastname", "username", "email")
		if err != nil {
			return err
		}
		applyProfile(p, values)
		if p, err = c.app.API.UpdateProfile(ctx, *p); err != nil {
			return err
		}
	} else if len(args) > 0 && args[0] != "show" {
		return errUsage
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "username\t%s\n", p.Username)
	fmt.Fprintf(w, "email\t%s\n", p.Email)
	fmt.Fprintf(w, "first name\t%s\n", p.FirstName)
	fmt.Fprintf(w, "last name\t%s\n", p.LastName)
	return w.Flush()
}

func applyProfile(p *domain.Profile, values map[string]string) {
	for k, v := range values {
		switch k {
		case "firstname":
			p.FirstName = v
		case "lastname":
			p.LastName = v
		case "username":
			p.Username = v
		case "email":
			p.Email = v
		}
	}
}

func (c *cli) printProducts(products []domain.Product) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, c.app.FormatPrice(p.Price))
	}
	w.Flush()
}

func (c *cli) printCart(items []domain.LineItem) {
	if len(items) == 0 {
		fmt.Fprintln(c.out, "cart is empty")
		return
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", item.ProductID, item.Name, item.Quantity,
			c.app.FormatPrice(item.UnitPrice), c.app.FormatPrice(item.Subtotal()))
	}
	fmt.Fprintf(w, "\t\t\t\tTOTAL %s\n", c.app.FormatPrice(domain.Total(items)))
	w.Flush()
}

// keyValues parses key=value arguments restricted to the allowed keys.
func keyValues(args []string, allowed ...string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if !slices.Contains(allowed, k) {
			return nil, fmt.Errorf("unknown key %q (allowed: %s)", k, strings.Join(allowed, ", "))
		}
		values[k] = v
	}
	return values, nil
}
