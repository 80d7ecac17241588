package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit/core/config"
)

type cachedConfig struct {
	Name string `env:"CONFIG_TEST_CACHED_NAME" envDefault:"first"`
}

type requiredConfig struct {
	Secret string `env:"CONFIG_TEST_REQUIRED_SECRET,required"`
}

type defaultsConfig struct {
	Port  int    `env:"CONFIG_TEST_PORT" envDefault:"8080"`
	Level string `env:"CONFIG_TEST_LEVEL" envDefault:"info"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.Level)
}

func TestLoad_Cached(t *testing.T) {
	t.Setenv("CONFIG_TEST_CACHED_NAME", "first")

	var a cachedConfig
	require.NoError(t, config.Load(&a))
	assert.Equal(t, "first", a.Name)

	t.Setenv("CONFIG_TEST_CACHED_NAME", "second")
	var b cachedConfig
	require.NoError(t, config.Load(&b))
	assert.Equal(t, "first", b.Name)
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	assert.Error(t, config.Load(&cfg))
	assert.Panics(t, func() { config.MustLoad(&requiredConfig{}) })
}

func TestLoad_Nil(t *testing.T) {
	assert.ErrorIs(t, config.Load[defaultsConfig](nil), config.ErrNilConfig)
}
