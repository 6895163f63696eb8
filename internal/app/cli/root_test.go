package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	identitymemory "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
)

type harness struct {
	dir      string
	provider *identitymemory.Provider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("ORDERS_STORE", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("ORDERS_OWNER", "")
	t.Setenv("CATALOG_FILE", "")
	return &harness{dir: t.TempDir(), provider: identitymemory.NewProvider()}
}

func (h *harness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out, &globalFlags{provider: h.provider})
	cmd.SetArgs(append([]string{"--store", "pebble", "--pebble-dir", h.dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// follow runs a long-lived command until its output contains want, then
// cancels it and returns everything it printed.
func (h *harness) follow(t *testing.T, want string, args ...string) string {
	t.Helper()
	out := &syncBuffer{}
	cmd := newRootCommand(out, &globalFlags{provider: h.provider})
	cmd.SetArgs(append([]string{"--store", "pebble", "--pebble-dir", h.dir}, args...))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), want)
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not stop after cancel")
	}
	return out.String()
}

func TestCatalog(t *testing.T) {
	h := newHarness(t)
	out, err := h.exec(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "manjar con pecana")
	assert.Contains(t, out, "S/ 2.00")
}

func TestCommandsRequireOwner(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec(t, "list")
	assert.ErrorIs(t, err, errNoOwner)
}

func TestAddPayListAndSummary(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "--owner", "u1", "add", "ana", "2", "--product", "oreo")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana: 2x oreo")

	_, err = h.exec(t, "--owner", "u1", "add", "Beto", "1", "--product", "cubo")
	require.NoError(t, err)

	_, err = h.exec(t, "--owner", "u1", "add", "Ana", "--product", "oreo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Formato no válido")

	out, err = h.exec(t, "--owner", "u1", "pay", "ana", "1.50")
	require.NoError(t, err)
	assert.Contains(t, out, "S/ 1.50")

	_, err = h.exec(t, "--owner", "u1", "pay", "ana", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monto de pago válido")

	out, err = h.exec(t, "--owner", "u1", "list", "--sort", "name")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Ana"))
	assert.True(t, strings.HasPrefix(lines[2], "Beto"))

	out, err = h.exec(t, "--owner", "u1", "list", "--search", "zz")
	require.NoError(t, err)
	assert.NotContains(t, out, "Ana")

	out, err = h.exec(t, "--owner", "u1", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Pedidos: 2")
	assert.Contains(t, out, "Total pagado: S/ 1.50")

	out, err = h.exec(t, "--owner", "u2", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Pedidos: 0")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec(t, "--owner", "u1", "add", "Ana", "1", "--product", "oreo")
	require.NoError(t, err)

	_, err = h.exec(t, "--owner", "u1", "delete", "ana")
	require.Error(t, err)

	out, err := h.exec(t, "--owner", "u1", "delete", "ana", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 items")

	out, err = h.exec(t, "--owner", "u1", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Pedidos: 0")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec(t, "--owner", "u1", "add", "Ana", "3", "--product", "oreo")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "pedidos.xlsx")
	_, err = h.exec(t, "--owner", "u1", "export", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	file, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 2)
	require.Len(t, file.Sheets[0].Rows, 2)
	assert.Equal(t, "Ana", file.Sheets[0].Rows[1].Cells[0].Value)
}

func TestSignInResolvesOwner(t *testing.T) {
	h := newHarness(t)
	principal, err := h.provider.SignUp(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)

	_, err = h.exec(t, "--email", "ana@example.com", "--password", "secret123", "add", "Carla", "1", "--product", "oreo")
	require.NoError(t, err)

	out, err := h.exec(t, "--owner", principal.UID, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Carla")

	_, err = h.exec(t, "--email", "ana@example.com", "--password", "wrong-pass", "list")
	require.Error(t, err)
}

func TestWatchPrintsCurrentOrders(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec(t, "--owner", "u1", "add", "Ana", "2", "--product", "oreo")
	require.NoError(t, err)

	out := h.follow(t, "Pedidos: 1", "--owner", "u1", "watch")
	assert.Contains(t, out, "Ana")
}

func TestWatchStopsAfterDuration(t *testing.T) {
	h := newHarness(t)
	start := time.Now()
	_, err := h.exec(t, "--owner", "u1", "watch", "--duration", "100ms")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWatchFollowsSignedInVendor(t *testing.T) {
	h := newHarness(t)
	principal, err := h.provider.SignUp(context.Background(), "beto@example.com", "secret123")
	require.NoError(t, err)
	_, err = h.exec(t, "--owner", principal.UID, "add", "Dora", "1", "--product", "cubo")
	require.NoError(t, err)

	out := h.follow(t, "Dora", "--email", "beto@example.com", "--password", "secret123", "watch")
	assert.Contains(t, out, "Pedidos: 1")
}
