// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/trackerwl/internal/auth"
	"github.com/autobrr/trackerwl/internal/domain"
)

type MetricsServer struct {
	manager        *Manager
	server         *http.Server
	basicAuthUsers map[string]string
}

// NewMetricsServer serves the manager's registry on host:port at /metrics.
// basicAuthUsers is a comma separated list of user:password pairs; an empty
// list disables authentication.
func NewMetricsServer(manager *Manager, host string, port int, basicAuthUsers string) *MetricsServer {
	s := &MetricsServer{
		manager:        manager,
		basicAuthUsers: parseBasicAuthUsers(basicAuthUsers),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	handler := promhttp.HandlerFor(manager.GetRegistry(), promhttp.HandlerOpts{
		EnableOpenMetrics: false,
		ErrorLog:          &promErrorLogger{},
	})

	r.Group(func(r chi.Router) {
		if len(s.basicAuthUsers) > 0 {
			r.Use(BasicAuth("metrics", s.basicAuthUsers))
		}
		r.Method(http.MethodGet, "/metrics", handler)
	})

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func parseBasicAuthUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, entry := range domain.SplitBasicAuthUsers(raw) {
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			log.Warn().Msg("metrics: skipping malformed basic auth entry")
			continue
		}
		users[user] = pass
	}
	return users
}

func (s *MetricsServer) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Bool("basicAuth", len(s.basicAuthUsers) > 0).Msg("Starting metrics server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (s *MetricsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// BasicAuth checks request credentials against users. Stored passwords that
// start with auth.HashPrefix are verified as argon2id hashes, anything else is
// compared in constant time.
func BasicAuth(realm string, users map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !checkPassword(users, user, pass) {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q`, realm))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkPassword(users map[string]string, user, pass string) bool {
	stored, ok := users[user]
	if !ok {
		return false
	}

	if strings.HasPrefix(stored, auth.HashPrefix) {
		valid, err := auth.VerifyPassword(pass, stored)
		if err != nil {
			log.Warn().Err(err).Str("user", user).Msg("metrics: invalid password hash")
			return false
		}
		return valid
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(pass)) == 1
}

type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	log.Error().Msg(fmt.Sprint(v...))
}
