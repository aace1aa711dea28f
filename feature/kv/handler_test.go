package kv_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"kv-reconciler/core/loader"
	"kv-reconciler/core/reconcile"
	"kv-reconciler/core/registry"
	"kv-reconciler/feature/kv"
	"kv-reconciler/feature/providers/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc, _ := newService(t, store, kv.Config{Provider: "memory"}, "sql")

	mgr := loader.NewManager(nil)
	mgr.Register(kv.NewFeature(svc))

	app := fiber.New()
	require.NoError(t, mgr.LoadAll(app))
	return app, store
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHandleReconcile(t *testing.T) {
	app, store := newApp(t)

	tests := []struct {
		name    string
		body    string
		status  int
		failure reconcile.FailureKind
	}{
		{"Create", `{"key":"app/x","value":"1"}`, 200, ""},
		{"Missing Value", `{"key":"app/x"}`, 400, reconcile.MissingValue},
		{"Unknown Provider", `{"provider":"nope","key":"app/x","value":"1"}`, 400, reconcile.UnknownProvider},
		{"Disabled Provider", `{"provider":"sql","key":"app/x","value":"1"}`, 503, reconcile.ProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/kv/reconcile", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, 2000)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			res := decode[kv.Result](t, resp.Body)
			assert.Equal(t, tt.failure, res.Failure)
			assert.Equal(t, tt.failure == "", res.Success)
		})
	}

	v, ok := store.Get("app/x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestHandleReconcile_MalformedBody(t *testing.T) {
	app, _ := newApp(t)
	req := httptest.NewRequest("POST", "/api/kv/reconcile", strings.NewReader(`{"key":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleApply(t *testing.T) {
	app, store := newApp(t)

	t.Run("Applied", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/kv/apply", strings.NewReader(sampleManifest))
		req.Header.Set("Content-Type", "application/toml")
		resp, err := app.Test(req, 2000)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		batch := decode[kv.BatchResult](t, resp.Body)
		assert.Equal(t, kv.Summary{Total: 2, Changed: 1, Unchanged: 1}, batch.Summary)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Partial Failure", func(t *testing.T) {
		body := "provider = \"memory\"\n[[entry]]\nkey = \"a\"\nvalue = \"1\"\n[[entry]]\nkey = \"b\"\n"
		resp, err := app.Test(httptest.NewRequest("POST", "/api/kv/apply", strings.NewReader(body)), 2000)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)
	})

	t.Run("Duplicate Keys", func(t *testing.T) {
		body := "[[entry]]\nkey = \"a\"\nvalue = \"1\"\n[[entry]]\nkey = \"a\"\nvalue = \"2\"\n"
		resp, err := app.Test(httptest.NewRequest("POST", "/api/kv/apply", strings.NewReader(body)), 2000)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}

func TestHandleProviders(t *testing.T) {
	app, _ := newApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/kv/providers", nil), 2000)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	infos := decode[[]registry.Info](t, resp.Body)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
		if info.Name == "sql" {
			assert.False(t, info.Enabled)
		}
	}
	assert.Equal(t, []string{"cloudfront", "consul", "etcd", "memory", "s3", "sql"}, names)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 409, kv.StatusFor(reconcile.ConcurrentModification))
	assert.Equal(t, 504, kv.StatusFor(reconcile.Timeout))
	assert.Equal(t, 502, kv.StatusFor(reconcile.BackendUnavailable))
	assert.Equal(t, 500, kv.StatusFor(""))
}
