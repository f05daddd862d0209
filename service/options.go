// File: service/options.go
// Package service defines configuration and functional options for Service.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package service

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-mina/api"
	"github.com/momentics/hioload-mina/idle"
)

// Config holds Service settings.
type Config struct {
	// Name tags log entries and metric keys.
	Name string
	// Address is reported as ServiceAddr by every session.
	Address net.Addr
	// SessionConfig is the template cloned into each new session.
	SessionConfig *api.SessionConfig
	// IdleInterval is the period of the background idle sweep started by
	// Start. Zero disables the sweep; call ProcessIdleSessions instead.
	IdleInterval time.Duration
	// IdleResolution is the deadline bucket width of the idle checker.
	IdleResolution time.Duration
	// Shards sizes the managed-session registry.
	Shards int
	// Executor, when set, runs the inbound events of each session on it.
	Executor api.Executor
	// Statistics adds a counting filter at the head of every chain.
	Statistics bool
	Logger     *logrus.Logger
	Clock      func() time.Time
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Name:           "service",
		SessionConfig:  api.DefaultSessionConfig(),
		IdleInterval:   time.Second,
		IdleResolution: idle.DefaultResolution,
		Shards:         16,
		Logger:         logrus.StandardLogger(),
		Clock:          time.Now,
	}
}

// Option customizes service initialization.
type Option func(*Config)

func WithName(name string) Option { return func(c *Config) { c.Name = name } }

func WithAddress(addr net.Addr) Option { return func(c *Config) { c.Address = addr } }

// WithSessionConfig replaces the session configuration template.
func WithSessionConfig(sc *api.SessionConfig) Option {
	return func(c *Config) { c.SessionConfig = sc }
}

// WithIdleInterval sets the background idle sweep period; 0 disables it.
func WithIdleInterval(d time.Duration) Option { return func(c *Config) { c.IdleInterval = d } }

func WithIdleResolution(d time.Duration) Option { return func(c *Config) { c.IdleResolution = d } }

func WithShards(n int) Option { return func(c *Config) { c.Shards = n } }

// WithExecutor runs inbound session events on e.
func WithExecutor(e api.Executor) Option { return func(c *Config) { c.Executor = e } }

// WithStatistics counts session traffic into the service control.
func WithStatistics() Option { return func(c *Config) { c.Statistics = true } }

func WithLogger(l *logrus.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithClock overrides the time source used for sessions and idle checks.
func WithClock(fn func() time.Time) Option { return func(c *Config) { c.Clock = fn } }
