package server

import (
	"strings"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/config"
)

const (
	// DefaultListen is the loopback bind used when nothing is configured.
	DefaultListen = "127.0.0.1:8090"
	// DefaultMaxBodyBytes limits request payloads to 1 MB.
	DefaultMaxBodyBytes int64 = 1 << 20
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
)

// Settings captures runtime configuration for the HTTP API server.
type Settings struct {
	Listen       string
	Tokens       []string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SettingsFromConfig builds Settings from the loaded qcgate configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Listen:       DefaultListen,
		MaxBodyBytes: DefaultMaxBodyBytes,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	if cfg != nil {
		srv := cfg.File.Server
		if listen := strings.TrimSpace(srv.Listen); listen != "" {
			settings.Listen = listen
		}
		if srv.MaxBodyBytes > 0 {
			settings.MaxBodyBytes = srv.MaxBodyBytes
		}
		if srv.ReadTimeout > 0 {
			settings.ReadTimeout = srv.ReadTimeout
		}
		if srv.WriteTimeout > 0 {
			settings.WriteTimeout = srv.WriteTimeout
		}
		if srv.IdleTimeout > 0 {
			settings.IdleTimeout = srv.IdleTimeout
		}
		settings.Tokens = cfg.Tokens()
	}
	settings.normalize()
	return settings
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Listen = strings.TrimSpace(s.Listen)
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	tokens := s.Tokens[:0]
	for _, token := range s.Tokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	s.Tokens = tokens
}

// URL returns the HTTP base URL for the configured listener.
func (s Settings) URL() string {
	return "http://" + s.Listen
}
