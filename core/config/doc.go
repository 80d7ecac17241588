// Package config loads environment configuration into tagged structs.
//
// A .env file in the working directory is read once on first use; a missing
// file is not an error and variables already set in the environment win.
// Parsing is done by caarlos0/env, so the usual env and envDefault tags
// apply:
//
//	type Config struct {
//		Name      string `env:"FLOWKIT_NAME"`
//		BodyLimit int64  `env:"FLOWKIT_BODY_LIMIT" envDefault:"1048576"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Each struct type is parsed once per process and later calls copy the
// cached value, so Load is cheap to call from constructors. MustLoad panics
// instead of returning the error and is meant for main.
package config
