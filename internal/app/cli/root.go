// Package cli implements ordersctl, the operator command line for vendor orders.
package cli

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Apurer/vendor-orders/internal/app/stores"
	identityfirebase "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/firebase"
	identitymemory "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
	identityapp "github.com/Apurer/vendor-orders/internal/domains/identity/application"
	identityports "github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	ordersapp "github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/platform/config"
	platformobservability "github.com/Apurer/vendor-orders/internal/platform/observability"
)

var errNoOwner = errors.New("set --owner or sign in with --email and --password")

type globalFlags struct {
	owner       string
	store       string
	pebbleDir   string
	postgresDSN string
	catalog     string
	email       string
	password    string

	// provider replaces the hosted identity provider when set.
	provider identityports.Provider
}

// NewRootCommand builds the ordersctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	return newRootCommand(out, &globalFlags{})
}

func newRootCommand(out io.Writer, flags *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "ordersctl",
		Short:         "Manage a vendor's customer orders from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.owner, "owner", config.String("ORDERS_OWNER", ""), "vendor uid whose orders are managed")
	pf.StringVar(&flags.store, "store", config.String("ORDERS_STORE", ""), "record store (memory, pebble, postgres)")
	pf.StringVar(&flags.pebbleDir, "pebble-dir", config.String("PEBBLE_DIR", stores.DefaultPebbleDir), "pebble data directory")
	pf.StringVar(&flags.postgresDSN, "postgres-dsn", config.String("POSTGRES_DSN", ""), "postgres connection string")
	pf.StringVar(&flags.catalog, "catalog", config.String("CATALOG_FILE", ""), "catalog YAML file")
	pf.StringVar(&flags.email, "email", "", "vendor email, resolves the owner through the identity provider")
	pf.StringVar(&flags.password, "password", "", "vendor password")

	root.AddCommand(
		catalogCmd(flags),
		addCmd(flags),
		payCmd(flags),
		deleteCmd(flags),
		listCmd(flags),
		summaryCmd(flags),
		exportCmd(flags),
		watchCmd(flags),
	)
	return root
}

// env is what a command needs once flags are resolved.
type env struct {
	stores   *stores.Stores
	catalog  *domain.Catalog
	orders   *ordersapp.Service
	identity *identityapp.Service
	logger   *slog.Logger
	owner    string
}

func (e *env) Close() {
	if e.stores != nil {
		e.stores.Close()
	}
}

func (f *globalFlags) open(ctx context.Context, out io.Writer) (*env, error) {
	logger := platformobservability.NewLogger(platformobservability.Settings{
		LogFormat:      "text",
		LogLevel:       slog.LevelWarn,
		LogOutput:      out,
		DisableTracing: true,
	})
	catalog, err := config.Catalog(f.catalog)
	if err != nil {
		return nil, err
	}
	kind, err := stores.ParseKind(f.store, f.postgresDSN)
	if err != nil {
		return nil, err
	}
	backend, err := stores.Open(ctx, stores.Settings{
		Kind:        kind,
		PostgresDSN: f.postgresDSN,
		PebbleDir:   f.pebbleDir,
	}, logger)
	if err != nil {
		return nil, err
	}
	e := &env{
		stores:  backend,
		catalog: catalog,
		orders:  ordersapp.NewService(backend.Gateway, ordersapp.WithCatalog(catalog), ordersapp.WithLogger(logger)),
		logger:  logger,
		owner:   f.owner,
	}
	if f.email != "" || f.password != "" {
		identity, err := f.identityService(ctx, logger)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.identity = identity
	}
	return e, nil
}

func (f *globalFlags) identityService(ctx context.Context, logger *slog.Logger) (*identityapp.Service, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	provider := f.provider
	if provider == nil {
		projectID := config.String("FIREBASE_PROJECT_ID", "")
		if projectID == "" {
			return nil, errors.New("signing in needs FIREBASE_PROJECT_ID; use --owner with local stores")
		}
		hosted, err := identityfirebase.New(ctx, identityfirebase.Config{
			ProjectID:       projectID,
			APIKey:          config.String("FIREBASE_API_KEY", ""),
			CredentialsJSON: config.String("FIREBASE_CREDENTIALS_JSON", ""),
		})
		if err != nil {
			return nil, err
		}
		provider = hosted
	}
	return identityapp.NewService(provider, identitymemory.NewSessionStore(), secret, identityapp.WithLogger(logger)), nil
}

// resolveOwner signs in when credentials were given and returns the uid
// every command scopes its records to.
func (f *globalFlags) resolveOwner(ctx context.Context, e *env) (string, error) {
	if e.identity != nil {
		session, err := e.identity.SignIn(ctx, f.email, f.password)
		if err != nil {
			return "", err
		}
		e.owner = session.Principal.UID
	}
	if e.owner == "" {
		return "", errNoOwner
	}
	return e.owner, nil
}

// run opens the environment, resolves the owner, and hands both to fn.
func (f *globalFlags) run(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := f.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()
	if _, err := f.resolveOwner(ctx, e); err != nil {
		return err
	}
	return fn(ctx, e)
}

// describe turns an order error into the vendor-facing message plus the cause.
func describe(err error) error {
	if err == nil {
		return nil
	}
	if msg := ordersapp.UserMessage(err); msg != "" {
		return fmt.Errorf("%s (%w)", msg, err)
	}
	return err
}
