// Command shopctl is a terminal storefront: it signs in, browses the menu,
// manages the cart and places orders against the API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/foodhall/pkg/cartstate"
	"github.com/example/foodhall/pkg/client"
	"github.com/example/foodhall/pkg/config"
	"github.com/example/foodhall/pkg/logger"
	"github.com/example/foodhall/pkg/models"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: shopctl [global flags] <command> [flags]

commands:
  register  --name --email --password
  login     --email --password
  logout
  menu
  cart
  add       <itemId> [--quantity n]
  update    <entryId> --quantity n
  remove    <entryId>
  clear
  checkout  --method cod|online|card|upi --first --last --phone --email --address --city --zip [--item id:qty ...]
  confirm   <sessionId>
  orders
`

type session struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

type app struct {
	api      *client.Client
	log      *zap.Logger
	stateDir string
	timeout  time.Duration
}

func main() {
	global := pflag.NewFlagSet("shopctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	apiURL := global.String("api", envOr("SHOPCTL_API", "http://localhost:8080"), "API base URL")
	stateDir := global.String("state-dir", defaultStateDir(), "directory holding the session and cart files")
	timeout := global.Duration("timeout", 20*time.Second, "per-command timeout")
	verbose := global.BoolP("verbose", "v", false, "log every cart action")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(&config.LogConfig{Level: level, Encoding: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	a := &app{api: client.New(*apiURL), log: log, stateDir: *stateDir, timeout: *timeout}
	if s, err := a.loadSession(); err == nil {
		a.api.SetToken(s.Token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	args := global.Args()
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		if client.IsSessionExpired(err) {
			_ = a.logout()
			fmt.Fprintln(os.Stderr, "session expired, run `shopctl login` again")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout()
	case "menu":
		items, err := a.api.Menu(ctx)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Printf("%s  %-28s %-10s %8.2f\n", it.ID.Hex(), it.Name, it.Category, it.Price)
		}
		return nil
	case "cart":
		store, err := a.cartStore(ctx)
		if err != nil {
			return err
		}
		printCart(store.State())
		return nil
	case "add":
		return a.add(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "remove":
		if len(args) != 1 {
			return errors.New("remove takes exactly one entry id")
		}
		store, err := a.cartStore(ctx)
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, args[0]); err != nil {
			return err
		}
		printCart(store.State())
		return nil
	case "clear":
		store, err := a.cartStore(ctx)
		if err != nil {
			return err
		}
		if err := store.Clear(ctx); err != nil {
			return err
		}
		printCart(store.State())
		return nil
	case "checkout":
		return a.checkout(ctx, args)
	case "confirm":
		if len(args) != 1 {
			return errors.New("confirm takes exactly one session id")
		}
		order, err := a.api.ConfirmPayment(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(order)
	case "orders":
		orders, err := a.api.Orders(ctx)
		if err != nil {
			return err
		}
		for _, o := range orders {
			fmt.Printf("%s  %s  %-14s %-9s %8.2f\n", o.ID.Hex(), o.CreatedAt.Format("2006-01-02 15:04"), o.Status, o.PaymentStatus, o.Total)
		}
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("register", pflag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password, at least 8 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.api.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	if err := a.saveSession(session{Token: res.Token, User: res.User}); err != nil {
		return err
	}
	fmt.Printf("registered %s <%s>\n", res.User.Name, res.User.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("login", pflag.ContinueOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.saveSession(session{Token: res.Token, User: res.User}); err != nil {
		return err
	}
	// Start from the server copy of the cart for the new account.
	store, err := a.cartStore(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s, %d item(s) in cart\n", res.User.Name, store.State().TotalItems)
	return nil
}

func (a *app) logout() error {
	store := cartstate.NewStore(a.api, a.cartPersister(), a.log)
	if err := store.Teardown(); err != nil {
		return err
	}
	if err := os.Remove(a.sessionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("add", pflag.ContinueOnError)
	qty := fs.IntP("quantity", "q", 1, "quantity to set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("add takes exactly one item id")
	}
	store, err := a.cartStore(ctx)
	if err != nil {
		return err
	}
	if _, err := store.Add(ctx, fs.Arg(0), *qty); err != nil {
		return err
	}
	printCart(store.State())
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	qty := fs.IntP("quantity", "q", 1, "new quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("update takes exactly one entry id")
	}
	store, err := a.cartStore(ctx)
	if err != nil {
		return err
	}
	if _, err := store.Update(ctx, fs.Arg(0), *qty); err != nil {
		return err
	}
	printCart(store.State())
	return nil
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
	method := fs.String("method", string(models.PaymentCOD), "payment method")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	phone := fs.String("phone", "", "phone number")
	email := fs.String("email", "", "contact email")
	address := fs.String("address", "", "street address")
	city := fs.String("city", "", "city")
	zip := fs.String("zip", "", "postal code")
	lines := fs.StringArray("item", nil, "order line as itemId:quantity; defaults to the current cart")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := client.CheckoutRequest{
		FirstName:     *first,
		LastName:      *last,
		Phone:         *phone,
		Email:         *email,
		Address:       *address,
		City:          *city,
		Zipcode:       *zip,
		PaymentMethod: models.PaymentMethod(*method),
	}

	var store *cartstate.Store
	if len(*lines) > 0 {
		for _, l := range *lines {
			line, err := parseLine(l)
			if err != nil {
				return err
			}
			req.Items = append(req.Items, line)
		}
	} else {
		var err error
		if store, err = a.cartStore(ctx); err != nil {
			return err
		}
		st := store.State()
		if len(st.Entries) == 0 {
			return errors.New("cart is empty")
		}
		for _, e := range st.Entries {
			req.Items = append(req.Items, client.OrderLine{ItemID: e.ItemID, Quantity: e.Quantity})
		}
		req.Subtotal = st.TotalAmount
	}

	res, err := a.api.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("order %s placed, total %.2f, payment %s\n", res.Order.ID.Hex(), res.Order.Total, res.Order.PaymentStatus)
	if res.CheckoutURL != nil {
		fmt.Printf("complete payment at %s\nthen run: shopctl confirm %s\n", *res.CheckoutURL, res.Order.SessionID)
	}

	if store != nil {
		if err := store.Clear(ctx); err != nil {
			a.log.Warn("Order placed but cart was not cleared", zap.Error(err))
		}
	}
	return nil
}

func (a *app) cartStore(ctx context.Context) (*cartstate.Store, error) {
	store := cartstate.NewStore(a.api, a.cartPersister(), a.log)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) cartPersister() *cartstate.FilePersister {
	return cartstate.NewFilePersister(filepath.Join(a.stateDir, "cart.json"))
}

func (a *app) sessionPath() string {
	return filepath.Join(a.stateDir, "session.json")
}

func (a *app) loadSession() (*session, error) {
	data, err := os.ReadFile(a.sessionPath())
	if err != nil {
		return nil, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *app) saveSession(s session) error {
	if err := os.MkdirAll(a.stateDir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(a.sessionPath(), data, 0o600)
}

func parseLine(s string) (client.OrderLine, error) {
	id, qty, ok := strings.Cut(s, ":")
	if !ok {
		return client.OrderLine{ItemID: s, Quantity: 1}, nil
	}
	n, err := strconv.Atoi(qty)
	if err != nil {
		return client.OrderLine{}, fmt.Errorf("bad quantity in %q", s)
	}
	return client.OrderLine{ItemID: id, Quantity: n}, nil
}

func printCart(st cartstate.State) {
	if st.Error != "" {
		fmt.Fprintln(os.Stderr, "warning:", st.Error)
	}
	if len(st.Entries) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, e := range st.Entries {
		fmt.Printf("%s  %-28s x%-3d %8.2f\n", e.ID, e.Item.Name, e.Quantity, e.Item.Price*float64(e.Quantity))
	}
	fmt.Printf("%d item(s), total %.2f\n", st.TotalItems, st.TotalAmount)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "shopctl")
	}
	return ".shopctl"
}
