//go:build pact
// +build pact

package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pact-foundation/pact-go/v2/models"
	pactprovider "github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/vendor-orders/internal/app/api"
	identitymemory "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
	identityobs "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/observability"
	identityapp "github.com/Apurer/vendor-orders/internal/domains/identity/application"
	ordersmemory "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/observability"
	ordersworkflows "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	pacttest "github.com/Apurer/vendor-orders/test/pact"
)

func TestVendorOrdersProviderPact(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app := newContractProviderApp(t)
	pactFile := filepath.ToSlash(pacttest.PactFile(t))
	if _, err := os.Stat(pactFile); errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pact file not found at %s - run the pact consumer tests first", pactFile)
	} else {
		require.NoError(t, err)
	}

	verifier := pactprovider.NewVerifier()
	stateHandlers := models.StateHandlers{
		pacttest.StateVendorExists: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			return nil, nil
		},
		pacttest.StateNoOrders: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			if setup {
				app.signIn(t)
			}
			return nil, nil
		},
		pacttest.StateOrderForAna: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			if setup {
				app.signIn(t)
				app.seedOrder(t, "Ana 2", "oreo")
			}
			return nil, nil
		},
		pacttest.StateNoSession: func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
			app.reset(t)
			return nil, nil
		},
	}

	err := verifier.VerifyProvider(t, pactprovider.VerifyRequest{
		ProviderBaseURL: app.server.URL,
		Provider:        pacttest.ProviderName,
		PactFiles:       []string{pactFile},
		StateHandlers:   stateHandlers,
		BeforeEach: func() error {
			app.reset(t)
			return nil
		},
	})
	require.NoError(t, err)
}

type contractProviderApp struct {
	provider *identitymemory.Provider
	identity *identityapp.Service
	orders   *ordersapp.Service
	server   *httptest.Server

	mu      sync.Mutex
	gateway *ordersmemory.Gateway
	token   string
	owner   string
}

func newContractProviderApp(t testing.TB) *contractProviderApp {
	t.Helper()

	provider := identitymemory.NewProvider()
	_, err := provider.SignUp(context.Background(), pacttest.VendorEmail, pacttest.VendorPassword)
	require.NoError(t, err)
	identity := identityapp.NewService(provider, identitymemory.NewSessionStore(), []byte("pact-secret"))

	app := &contractProviderApp{provider: provider, identity: identity, gateway: ordersmemory.NewGateway()}
	app.orders = ordersapp.NewService(app.gateway)
	orderService := ordersobs.New(app.orders)
	router := api.NewRouter(api.Dependencies{
		Orders:         orderService,
		OrderWorkflows: ordersworkflows.NewInlineOrderWorkflows(orderService),
		Identity:       identityobs.New(identity),
	})

	app.server = httptest.NewServer(app.substituteToken(router))
	t.Cleanup(app.server.Close)
	return app
}

// substituteToken swaps the recorded placeholder bearer for the session
// issued by the current provider state.
func (a *contractProviderApp) substituteToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+pacttest.PlaceholderToken {
			a.mu.Lock()
			token := a.token
			a.mu.Unlock()
			r.Header.Set("Authorization", "Bearer "+token)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *contractProviderApp) reset(t testing.TB) {
	t.Helper()
	a.mu.Lock()
	owner := a.owner
	a.token = ""
	a.mu.Unlock()
	if owner == "" {
		return
	}
	ctx := context.Background()
	items, err := a.gateway.ListItems(ctx, ports.Filter{OwnerID: owner})
	require.NoError(t, err)
	for _, it := range items {
		_ = a.gateway.DeleteItem(ctx, owner, it.ID)
	}
	payments, err := a.gateway.ListPayments(ctx, ports.Filter{OwnerID: owner})
	require.NoError(t, err)
	for _, p := range payments {
		_ = a.gateway.DeletePayment(ctx, owner, p.ID)
	}
}

func (a *contractProviderApp) signIn(t testing.TB) {
	t.Helper()
	session, err := a.identity.SignIn(context.Background(), pacttest.VendorEmail, pacttest.VendorPassword)
	require.NoError(t, err)
	a.mu.Lock()
	a.token = session.Token
	a.owner = session.Principal.UID
	a.mu.Unlock()
}

func (a *contractProviderApp) seedOrder(t testing.TB, prompt, product string) {
	t.Helper()
	a.mu.Lock()
	owner := a.owner
	a.mu.Unlock()
	_, err := a.orders.AddOrUpdateOrder(context.Background(), owner, ports.AddOrderInput{Prompt: prompt, Product: product})
	require.NoError(t, err)
}
