/*
Copyright © 2024 Red Hat, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package telemetry holds process-wide metrics endpoint. The endpoint is
// started by Initialize and stopped by Shutdown; both calls are idempotent
// and safe to be called from multiple goroutines.
package telemetry

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
)

// Defaults for metrics endpoint
const (
	DefaultAddress    = ":8080"
	MetricsEndpoint   = "/metrics"
	readHeaderTimeout = 5 * time.Second
)

var (
	mutex    sync.Mutex
	server   *http.Server
	listener net.Listener
)

// Initialize starts HTTP server exposing metrics on configured address.
// Calling it again while already initialized does nothing.
func Initialize(configuration *conf.MetricsConfiguration) error {
	mutex.Lock()
	defer mutex.Unlock()

	if server != nil {
		log.Debug().Msg("Telemetry already initialized")
		return nil
	}

	address := configuration.Address
	if address == "" {
		address = DefaultAddress
	}

	l, err := net.Listen("tcp", address)
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("Unable to listen for metrics requests")
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsEndpoint, promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		err := srv.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics endpoint stopped unexpectedly")
		}
	}()

	server = srv
	listener = l
	log.Info().Str("address", l.Addr().String()).Msg("Metrics endpoint started")
	return nil
}

// Shutdown gracefully stops metrics endpoint. Calling it when not
// initialized does nothing.
func Shutdown(ctx context.Context) error {
	mutex.Lock()
	defer mutex.Unlock()

	if server == nil {
		return nil
	}

	err := server.Shutdown(ctx)
	server = nil
	listener = nil
	if err != nil {
		log.Error().Err(err).Msg("Unable to stop metrics endpoint")
		return err
	}

	log.Info().Msg("Metrics endpoint stopped")
	return nil
}

// IsInitialized returns true when metrics endpoint is running
func IsInitialized() bool {
	mutex.Lock()
	defer mutex.Unlock()
	return server != nil
}

// Address returns address metrics endpoint listens on, or empty string when
// not initialized
func Address() string {
	mutex.Lock()
	defer mutex.Unlock()

	if listener == nil {
		return ""
	}
	return listener.Addr().String()
}
