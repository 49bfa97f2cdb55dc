package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Debug Console", Config{Level: "debug", Format: "console"}, false},
		{"Info JSON", Config{Level: "info", Format: "json"}, false},
		{"Warn", Config{Level: "warn"}, false},
		{"Invalid Level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_LevelApplied(t *testing.T) {
	l, err := New(&Config{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestWithRayID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("ray_id", "ray-123")
		WithRayID(base, c).Info("with ray")
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/none", func(c *fiber.Ctx) error {
		WithRayID(base, c).Info("without ray")
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/none", nil))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "ray-123", entries[0].ContextMap()["ray_id"])
	assert.NotContains(t, entries[1].ContextMap(), "ray_id")
}
