package logger_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit/core/logger"
)

type ctxKey struct{}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "api")),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.InfoContext(ctx, "handled", logger.Component("test"), logger.Error(nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"handled"`)
	assert.Contains(t, out, `"service":"api"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"component":"test"`)
	assert.NotContains(t, out, `"error"`)
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := logger.ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = logger.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = logger.ParseLevel("loud")
	assert.ErrorIs(t, err, logger.ErrUnknownLevel)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := logger.ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, logger.FormatJSON, f)

	_, err = logger.ParseFormat("xml")
	assert.ErrorIs(t, err, logger.ErrUnknownFormat)
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	assert.True(t, logger.Route("").Equal(slog.Attr{}))
	assert.Equal(t, "route", logger.Route("/users/:id").Key)
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)
	assert.True(t, logger.Stack(nil).Equal(slog.Attr{}))
	assert.True(t, logger.ClientIP("").Equal(slog.Attr{}))
	assert.Equal(t, "query", logger.Query("a=1").Key)
}
