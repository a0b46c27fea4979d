package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedApp(keys []string, limit RateLimitConfig) *fiber.App {
	app := fiber.New()
	app.Use(APIKeyAuthMiddleware(keys), RateLimit(limit))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalsAPIKeyID).(string))
	})
	return app
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	app := newProtectedApp([]string{"secret-one", "secret-two"}, RateLimitConfig{Max: 100, Expiration: time.Minute})

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "X-API-Key", "secret-one", http.StatusOK},
		{"bearer key", "Authorization", "Bearer secret-two", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthMiddlewareWithoutKeys(t *testing.T) {
	app := newProtectedApp(nil, RateLimitConfig{Max: 100, Expiration: time.Minute})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "anything")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitPerKey(t *testing.T) {
	app := newProtectedApp([]string{"a", "b"}, RateLimitConfig{Max: 2, Expiration: time.Minute})

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", key)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"), "limits are tracked per key")
}

func TestLoadAPIKeys(t *testing.T) {
	t.Setenv("API_KEY", " k1, ,k2 ")
	assert.Equal(t, []string{"k1", "k2"}, LoadAPIKeys())
}
