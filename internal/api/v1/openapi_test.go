package apiv1

import (
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pathParam = regexp.MustCompile(`:([a-zA-Z_]+)`)

func TestSpecDocumentsEveryRoute(t *testing.T) {
	doc, err := LoadSpec(t.Context(), "../../../"+DefaultSpecPath)
	require.NoError(t, err)

	app := fiber.New()
	noop := func(c *fiber.Ctx) error { return c.Next() }
	RegisterHandlers(app, NewAPIServer(nil), noop)

	seen := 0
	for _, r := range app.GetRoutes(true) {
		if r.Method == http.MethodHead || r.Path == "/" {
			continue
		}
		p := pathParam.ReplaceAllString(r.Path, "{$1}")
		item := doc.Paths.Find(p)
		if !assert.NotNil(t, item, "undocumented path %s", p) {
			continue
		}
		assert.NotNil(t, item.GetOperation(r.Method), "undocumented operation %s %s", r.Method, p)
		seen++
	}
	assert.Equal(t, 16, seen)
}

func TestPublicRoutesHaveNoSecurity(t *testing.T) {
	doc, err := LoadSpec(t.Context(), "../../../"+DefaultSpecPath)
	require.NoError(t, err)

	for _, p := range []string{"/ping", "/pricing", "/denial-codes"} {
		op := doc.Paths.Find(p).Get
		require.NotNil(t, op, p)
		require.NotNil(t, op.Security, p)
		assert.Empty(t, *op.Security, p)
	}
	op := doc.Paths.Find("/appeals/{uuid}/generate").Post
	require.NotNil(t, op)
	assert.Nil(t, op.Security)
	assert.True(t, strings.Contains(op.Description, "already_completed"))
}

func TestLoadSpecMissingFile(t *testing.T) {
	_, err := LoadSpec(t.Context(), "does-not-exist.yml")
	assert.Error(t, err)
}
