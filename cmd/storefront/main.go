// Command storefront drives the storefront client from a terminal: cart
// operations, favorites and the vendor dashboard.
//
//	storefront --backend http://localhost:8080 --token tok-asha cart add --item I1 --category snacks --vendor V1
//	storefront --token tok-cafe dashboard watch --vendor V1
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/campuseats/storefront"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/notify"
)

const usage = `usage: storefront [flags] <command> <action>

commands:
  cart show|add|inc|dec|remove|clear
  fav list|toggle|readd
  dashboard watch|stock|status

Without --token the session is a guest. Guest carts live in local storage,
which is in memory unless guest.provider is "redis" in the config file,
STOREFRONT_GUEST_PROVIDER=redis is set, or --redis is given; only then does
a guest cart survive between runs.

flags:
`

type options struct {
	configFile string
	backendURL string
	redisURL   string
	token      string
	uniID      string
	itemID     string
	itemName   string
	category   string
	vendorID   string
	quantity   int
	kind       string
	value      string
	orderID    string
	status     string
	interval   time.Duration
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options
	flags := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (JSON or YAML)")
	flags.StringVar(&opts.backendURL, "backend", "", "backend base URL")
	flags.StringVar(&opts.redisURL, "redis", "", "Redis URL for guest carts and the saved session")
	flags.StringVarP(&opts.token, "token", "t", "", "bearer token; guest session when empty")
	flags.StringVar(&opts.uniID, "uni", "", "campus id for favorites")
	flags.StringVarP(&opts.itemID, "item", "i", "", "item id")
	flags.StringVar(&opts.itemName, "name", "", "item name")
	flags.StringVar(&opts.category, "category", "", "item category")
	flags.StringVarP(&opts.vendorID, "vendor", "v", "", "vendor id")
	flags.IntVarP(&opts.quantity, "quantity", "q", 1, "quantity to add")
	flags.StringVar(&opts.kind, "kind", "", "inventory kind (Retail or Produce)")
	flags.StringVar(&opts.value, "value", "", "inventory value: a quantity for Retail, Y or N for Produce")
	flags.StringVar(&opts.orderID, "order", "", "order id")
	flags.StringVar(&opts.status, "status", "", "new order status")
	flags.DurationVar(&opts.interval, "interval", 0, "dashboard poll interval")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	rest := flags.Args()
	if len(rest) < 2 {
		flags.Usage()
		return fmt.Errorf("expected a command and an action")
	}

	var cfgOpts []config.Option
	if opts.configFile != "" {
		cfgOpts = append(cfgOpts, config.WithConfigFile(opts.configFile))
	}
	if opts.backendURL != "" {
		cfgOpts = append(cfgOpts, config.WithBackendURL(opts.backendURL))
	}
	if opts.redisURL != "" {
		cfgOpts = append(cfgOpts, config.WithGuestStorage("redis", opts.redisURL))
	}
	if opts.interval > 0 {
		cfgOpts = append(cfgOpts, config.WithPollInterval(opts.interval))
	}
	if opts.logLevel != "" {
		cfgOpts = append(cfgOpts, config.WithLogLevel(opts.logLevel))
	}

	sfOpts := []storefront.Option{
		storefront.WithNotifier(notify.Func(func(ctx context.Context, n notify.Notification) {
			fmt.Fprintf(stderr, "[%s] %s\n", n.Level, n.Message)
		})),
	}
	if opts.logLevel == "" {
		sfOpts = append(sfOpts, storefront.WithLogger(logger.NoOp{}))
	}

	sf, err := storefront.NewFromOptions(ctx, cfgOpts, sfOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = sf.Close(context.Background()) }()

	app := &app{sf: sf, opts: opts, out: stdout}
	if opts.token != "" {
		app.sess, err = sf.Sessions.Login(ctx, opts.token)
	} else {
		app.sess, err = sf.Sessions.Current(ctx)
	}
	if err != nil {
		return err
	}

	switch rest[0] {
	case "cart":
		if !app.sess.IsAuthenticated() && sf.Config.Guest.Provider != "redis" {
			fmt.Fprintln(stderr, "note: guest cart is kept in memory and is lost when this command exits; use --redis to keep it")
		}
		return app.cart(ctx, rest[1])
	case "fav", "favorites":
		return app.favorites(ctx, rest[1])
	case "dashboard":
		return app.dashboard(ctx, rest[1])
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}
