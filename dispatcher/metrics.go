/*
Copyright © 2021, 2022, 2024 Red Hat, Inc.

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

package dispatcher

// File metrics contains all metrics that needs to be exposed to Prometheus and
// indirectly to Grafana.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
)

// Metrics names
const (
	NotesFoundName          = "notes_found"
	NotesProcessedName      = "notes_processed"
	NotesSkippedName        = "notes_skipped"
	NotificationSentName    = "notification_sent"
	NotificationFailedName  = "notification_failed"
	ReadNotesErrorsName     = "read_notes_errors"
	StorageErrorsName       = "storage_errors"
	StorageSetupErrorsName  = "storage_setup_errors"
	ProducerSetupErrorsName = "producer_setup_errors"
)

// Metrics helps
const (
	NotesFoundHelp          = "The total number of unnotified public notes found"
	NotesProcessedHelp      = "The total number of public notes dispatched to subscribers"
	NotesSkippedHelp        = "The total number of public notes skipped because of missing event or because other run claimed them"
	NotificationSentHelp    = "The total number of notifications sent, by channel"
	NotificationFailedHelp  = "The total number of notifications not sent because of transport error, by channel"
	ReadNotesErrorsHelp     = "The total number of errors when reading unnotified notes"
	StorageErrorsHelp       = "The total number of storage errors that aborted a run"
	StorageSetupErrorsHelp  = "The total number of errors when setting up storage connection"
	ProducerSetupErrorsHelp = "The total number of errors when setting up Kafka producer"
)

// channelLabel is label attached to per channel counters
const channelLabel = "channel"

// PushGatewayClient is a simple wrapper over http.Client so that prometheus
// can do HTTP requests with the given authentication header
type PushGatewayClient struct {
	AuthToken string

	httpClient http.Client
}

// Do is a simple wrapper over http.Client.Do method that includes
// the authentication header configured in the PushGatewayClient instance
func (pgc *PushGatewayClient) Do(request *http.Request) (*http.Response, error) {
	if pgc.AuthToken != "" {
		log.Debug().Msg("Adding authorization header to HTTP request")
		request.Header.Set("Authorization", "Basic "+pgc.AuthToken)
	} else {
		log.Debug().Msg("No authorization token provided. Making HTTP request without credentials.")
	}
	log.Debug().Str("request", request.URL.String()).Str("method", request.Method).Msg("Pushing metrics to Prometheus push gateway")
	resp, err := pgc.httpClient.Do(request)
	if resp != nil {
		log.Debug().Int("code", resp.StatusCode).Msg("Returned status code")
	}
	return resp, err
}

// NotesFound shows number of unnotified notes found in storage
var NotesFound = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotesFoundName,
	Help: NotesFoundHelp,
})

// NotesProcessed shows number of notes dispatched to subscribers
var NotesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotesProcessedName,
	Help: NotesProcessedHelp,
})

// NotesSkipped shows number of notes that were not dispatched
var NotesSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: NotesSkippedName,
	Help: NotesSkippedHelp,
})

// NotificationSent shows number of notifications handed over to transport
var NotificationSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: NotificationSentName,
	Help: NotificationSentHelp,
}, []string{channelLabel})

// NotificationFailed shows number of notifications refused by transport
var NotificationFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: NotificationFailedName,
	Help: NotificationFailedHelp,
}, []string{channelLabel})

// ReadNotesErrors shows number of errors when reading unnotified notes
var ReadNotesErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ReadNotesErrorsName,
	Help: ReadNotesErrorsHelp,
})

// StorageErrors shows number of storage errors that aborted a run
var StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: StorageErrorsName,
	Help: StorageErrorsHelp,
})

// StorageSetupErrors shows number of errors when setting up storage
var StorageSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: StorageSetupErrorsName,
	Help: StorageSetupErrorsHelp,
})

// ProducerSetupErrors shows number of errors when setting up Kafka producer
var ProducerSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: ProducerSetupErrorsName,
	Help: ProducerSetupErrorsHelp,
})

// AddMetricsWithNamespaceAndSubsystem register the desired metrics using a
// given namespace and subsystem
func AddMetricsWithNamespaceAndSubsystem(namespace, subsystem string) {
	// Unregister all metrics and registrer them again
	prometheus.Unregister(NotesFound)
	prometheus.Unregister(NotesProcessed)
	prometheus.Unregister(NotesSkipped)
	prometheus.Unregister(NotificationSent)
	prometheus.Unregister(NotificationFailed)
	prometheus.Unregister(ReadNotesErrors)
	prometheus.Unregister(StorageErrors)
	prometheus.Unregister(StorageSetupErrors)
	prometheus.Unregister(ProducerSetupErrors)

	NotesFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NotesFoundName,
		Help:      NotesFoundHelp,
	})

	NotesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NotesProcessedName,
		Help:      NotesProcessedHelp,
	})

	NotesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NotesSkippedName,
		Help:      NotesSkippedHelp,
	})

	NotificationSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NotificationSentName,
		Help:      NotificationSentHelp,
	}, []string{channelLabel})

	NotificationFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      NotificationFailedName,
		Help:      NotificationFailedHelp,
	}, []string{channelLabel})

	ReadNotesErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ReadNotesErrorsName,
		Help:      ReadNotesErrorsHelp,
	})

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      StorageErrorsName,
		Help:      StorageErrorsHelp,
	})

	StorageSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      StorageSetupErrorsName,
		Help:      StorageSetupErrorsHelp,
	})

	ProducerSetupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      ProducerSetupErrorsName,
		Help:      ProducerSetupErrorsHelp,
	})
}

// PushMetrics function pushes the metrics to the configured prometheus push
// gateway
func PushMetrics(metricsConf *conf.MetricsConfiguration) error {
	client := PushGatewayClient{metricsConf.GatewayAuthToken, http.Client{}}

	// Creates a pusher to the gateway "$PUSHGW_URL/metrics/job/$(job_name)
	return push.New(metricsConf.GatewayURL, metricsConf.Job).
		Collector(NotesFound).
		Collector(NotesProcessed).
		Collector(NotesSkipped).
		Collector(NotificationSent).
		Collector(NotificationFailed).
		Collector(ReadNotesErrors).
		Collector(StorageErrors).
		Collector(StorageSetupErrors).
		Collector(ProducerSetupErrors).
		Client(&client).
		Push()
}
