// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements the auth SessionStore on Redis, using native key
// expiry for session lifetime.
package redis

import (
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ClientConfig holds the connection settings for Dial.
type ClientConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Dial builds a client without contacting the server.
func Dial(cfg ClientConfig) *goredis.Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	return goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}
