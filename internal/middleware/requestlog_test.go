package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	app := fiber.New()
	app.Use(RequestLog(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	for path, want := range map[string]int{"/ok": 200, "/missing": 404, "/boom": 500} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Response-Time"))
	}

	require.Equal(t, 3, logs.Len())
	levels := map[string]zapcore.Level{}
	for _, entry := range logs.All() {
		levels[entry.ContextMap()["path"].(string)] = entry.Level
	}
	assert.Equal(t, zapcore.InfoLevel, levels["/ok"])
	assert.Equal(t, zapcore.WarnLevel, levels["/missing"])
	assert.Equal(t, zapcore.ErrorLevel, levels["/boom"])
}
