/*
Copyright © 2021, 2022, 2023, 2024 Red Hat, Inc.

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

// Package dispatcher contains the job that notifies status page subscribers
// about public notes posted to scheduled maintenance events. Each run reads
// notes that were not notified yet, resolves the event, marks every note as
// notified before anything is sent, resolves affected resources, status
// pages and subscribers, and finally sends e-mails and SMS. A note is dispatched at
// most once, even when runs overlap.
package dispatcher

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/dispatcher

import (
	"context"
	"html"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/producer"
	"github.com/RedHatInsights/maintenance-notification-service/producer/disabled"
	"github.com/RedHatInsights/maintenance-notification-service/producer/kafka"
	"github.com/RedHatInsights/maintenance-notification-service/sender"
	"github.com/RedHatInsights/maintenance-notification-service/telemetry"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Exit codes
const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = iota
	// ExitStatusConfiguration is an error code related to program configuration
	ExitStatusConfiguration
	// ExitStatusError is a general error code
	ExitStatusError
	// ExitStatusStorageError is returned in case of any storage-related error
	ExitStatusStorageError
	// ExitStatusSenderError is returned when e-mail or SMS transport cannot
	// be initialized
	ExitStatusSenderError
	// ExitStatusSchedulerError is raised when schedule cannot be parsed
	ExitStatusSchedulerError
	// ExitStatusMetricsError is raised when prometheus metrics cannot be pushed
	ExitStatusMetricsError
)

// Messages
const (
	separator                = "------------------------------------------------------------"
	operationFailedMessage   = "Operation failed"
	metricsPushFailedMessage = "Couldn't push prometheus metrics"
	notesAttribute           = "notes"
	statusPagesAttribute     = "status pages"
	subscribersAttribute     = "subscribers"
	failedSendsAttribute     = "failed sends"
)

// RunStatistic summarizes one run of the job
type RunStatistic struct {
	NotesFound     int
	NotesProcessed int
	NotesSkipped   int
	SendsSucceeded int
	SendsFailed    int
}

// Dispatcher is the notification job
type Dispatcher struct {
	storage    Storage
	engine     *Engine
	renderer   *NoteRenderer
	processing conf.ProcessingConfiguration
	now        func() time.Time
}

// New constructs the notification job on top of given storage and senders
func New(storage Storage, mail sender.MailSender, sms sender.SMSSender, config *conf.ConfigStruct) *Dispatcher {
	notificationsConfig := conf.GetNotificationsConfiguration(config)

	return &Dispatcher{
		storage:    storage,
		engine:     NewEngine(mail, sms, NewLinkBuilder(&notificationsConfig), notificationsConfig.MaxConcurrentSends),
		renderer:   NewNoteRenderer(),
		processing: conf.GetProcessingConfiguration(config),
		now:        time.Now,
	}
}

// RunOnce method performs one run of the job. Notes are processed one by
// one. Storage errors abort the run; send errors never do.
func (dispatcher *Dispatcher) RunOnce() (RunStatistic, error) {
	var statistic RunStatistic

	notes, err := dispatcher.storage.ReadUnnotifiedNotes(dispatcher.now())
	if err != nil {
		ReadNotesErrors.Inc()
		log.Err(err).Msg("Read unnotified notes")
		return statistic, &StorageError{Operation: "read unnotified notes", Err: err}
	}

	statistic.NotesFound = len(notes)
	NotesFound.Add(float64(len(notes)))
	log.Info().Int(notesAttribute, len(notes)).Msg("Unnotified notes found")

	for i := range notes {
		err := dispatcher.processNote(&notes[i], &statistic)
		if err != nil {
			StorageErrors.Inc()
			log.Err(err).Str(NoteIDMessage, notes[i].ID.String()).Msg(operationFailedMessage)
			return statistic, err
		}
	}

	log.Info().
		Int("found", statistic.NotesFound).
		Int("processed", statistic.NotesProcessed).
		Int("skipped", statistic.NotesSkipped).
		Int("sent", statistic.SendsSucceeded).
		Int("failed", statistic.SendsFailed).
		Msg("Run finished")
	return statistic, nil
}

// processNote method marks given note as notified and dispatches it to all
// eligible subscribers
func (dispatcher *Dispatcher) processNote(note *types.PublicNote, statistic *RunStatistic) error {
	noteLog := log.With().Str(NoteIDMessage, note.ID.String()).Logger()

	// event is read before the claim so that failed read leaves the note
	// for the next run
	event, err := dispatcher.storage.ReadScheduledMaintenance(note.ScheduledMaintenanceID)
	if err != nil {
		return &StorageError{Operation: "read scheduled maintenance", Err: err}
	}

	claimed, err := dispatcher.storage.MarkNoteAsNotified(note.ID)
	if err != nil {
		return &StorageError{Operation: "mark note as notified", Err: err}
	}
	if !claimed {
		noteLog.Info().Msg("Note already claimed by another run, skipping")
		dispatcher.skipNote(statistic)
		return nil
	}

	if event == nil {
		noteLog.Info().
			Str(EventIDMessage, note.ScheduledMaintenanceID.String()).
			Msg("Scheduled maintenance event not found, skipping note")
		dispatcher.skipNote(statistic)
		return nil
	}

	affected, err := mapAffectedResources(dispatcher.storage, event)
	if err != nil {
		return &StorageError{Operation: "read status page resources", Err: err}
	}

	statusPages, err := selectStatusPages(dispatcher.storage, event, &dispatcher.processing)
	if err != nil {
		return &StorageError{Operation: "read status pages", Err: err}
	}
	noteLog.Debug().Int(statusPagesAttribute, len(statusPages)).Msg("Status pages to notify")

	noteHTML := dispatcher.renderNote(note)

	for i := range statusPages {
		statusPage := &statusPages[i]

		subscribers, err := dispatcher.storage.ReadSubscribersByStatusPage(statusPage.ID)
		if err != nil {
			return &StorageError{Operation: "read subscribers", Err: err}
		}

		affectedOnPage := affected[statusPage.ID]
		selected := selectSubscribers(subscribers, affectedOnPage, statusPage)

		results := dispatcher.engine.Dispatch(&NoteDelivery{
			NoteID:            note.ID,
			NoteHTML:          noteHTML,
			Event:             event,
			StatusPage:        statusPage,
			AffectedResources: affectedOnPage,
		}, selected)

		failures := countFailures(results)
		statistic.SendsFailed += failures
		statistic.SendsSucceeded += len(results) - failures

		noteLog.Debug().
			Str(StatusPageIDMessage, statusPage.ID.String()).
			Int(subscribersAttribute, len(selected)).
			Int(failedSendsAttribute, failures).
			Msg("Status page subscribers notified")
	}

	statistic.NotesProcessed++
	NotesProcessed.Inc()
	return nil
}

func (dispatcher *Dispatcher) skipNote(statistic *RunStatistic) {
	statistic.NotesSkipped++
	NotesSkipped.Inc()
}

// renderNote method converts note to HTML, falling back to escaped plain
// text when markdown cannot be rendered
func (dispatcher *Dispatcher) renderNote(note *types.PublicNote) string {
	rendered, err := dispatcher.renderer.RenderNote(note.Note)
	if err != nil {
		return html.EscapeString(note.Note)
	}
	return rendered
}

// setupNotificationProducer function creates Kafka producer or the disabled
// one when broker is not enabled in configuration
func setupNotificationProducer(config *conf.ConfigStruct) (producer.Producer, error) {
	kafkaConfig := conf.GetKafkaBrokerConfiguration(config)

	if !kafkaConfig.Enabled {
		log.Info().Msg("Broker config for Kafka is disabled")
		return &disabled.Producer{}, nil
	}

	kafkaProducer, err := kafka.New(config)
	if err != nil {
		ProducerSetupErrors.Inc()
		log.Err(err).Msg("Couldn't initialize Kafka producer with the provided config.")
		return nil, err
	}
	return kafkaProducer, nil
}

func registerMetrics(metricsConfig *conf.MetricsConfiguration) {
	if metricsConfig.Namespace != "" || metricsConfig.Subsystem != "" {
		log.Info().
			Str("namespace", metricsConfig.Namespace).
			Str("subsystem", metricsConfig.Subsystem).
			Msg("Setting metrics namespace")
		AddMetricsWithNamespaceAndSubsystem(metricsConfig.Namespace, metricsConfig.Subsystem)
	}
}

func closeStorage(storage Storage) {
	err := storage.Close()
	if err != nil {
		log.Err(err).Msg("Unable to close storage connection")
	}
}

func closeNotifier(notifier producer.Producer) {
	err := notifier.Close()
	if err != nil {
		log.Err(err).Msg("Unable to close Kafka producer")
	}
}

// pushMetrics function pushes metrics to gateway, retrying as configured
func pushMetrics(metricsConf *conf.MetricsConfiguration) error {
	err := PushMetrics(metricsConf)
	if err == nil {
		log.Info().Msg("Metrics pushed successfully")
		return nil
	}

	log.Err(err).Msg(metricsPushFailedMessage)
	for i := metricsConf.Retries; i > 0 && metricsConf.RetryAfter > 0; i-- {
		time.Sleep(metricsConf.RetryAfter)
		log.Info().Msgf("Push metrics. Retrying (%d/%d attempts left)", i, metricsConf.Retries)
		err = PushMetrics(metricsConf)
		if err == nil {
			log.Info().Msg("Metrics pushed successfully")
			return nil
		}
		log.Err(err).Msg(metricsPushFailedMessage)
	}
	return &StatusMetricsError{}
}

// runDaemon function serves metrics and runs the job on schedule until the
// process is interrupted
func runDaemon(dispatcher *Dispatcher, config *conf.ConfigStruct) int {
	schedulerConfig := conf.GetSchedulerConfiguration(config)
	scheduler, err := NewScheduler(&schedulerConfig, func() {
		// errors are logged by the job, next tick retries from scratch
		_, _ = dispatcher.RunOnce()
	})
	if err != nil {
		log.Err(err).Msg("Unable to set up scheduler")
		return ExitStatusSchedulerError
	}

	metricsConfig := conf.GetMetricsConfiguration(config)
	err = telemetry.Initialize(&metricsConfig)
	if err != nil {
		log.Err(err).Msg("Unable to start metrics endpoint")
		return ExitStatusMetricsError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start()
	<-ctx.Done()
	log.Info().Msg("Termination requested, waiting for running job")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Err(err).Msg("Unable to stop metrics endpoint")
	}
	return ExitStatusOK
}

// Run function is entry point to the job. It sets up storage and transports
// and then runs the job once, runs it on schedule, or only prints notes
// waiting for dispatch.
func Run(config conf.ConfigStruct, cliFlags types.CliFlags) int {
	log.Info().Msg("Dispatcher started")
	log.Info().Msg(separator)

	if !cliFlags.RunOnce && !cliFlags.Daemon && !cliFlags.PrintPendingNotes {
		log.Error().Msg("No operation mode selected")
		return ExitStatusError
	}

	metricsConfig := conf.GetMetricsConfiguration(&config)
	registerMetrics(&metricsConfig)

	storageConfiguration := conf.GetStorageConfiguration(&config)
	storage, err := NewStorage(&storageConfiguration)
	if err != nil {
		StorageSetupErrors.Inc()
		log.Err(err).Msg(operationFailedMessage)
		return ExitStatusStorageError
	}
	defer closeStorage(storage)

	if cliFlags.PrintPendingNotes {
		err := storage.PrintPendingNotes(time.Now())
		if err != nil {
			return ExitStatusStorageError
		}
		return ExitStatusOK
	}

	log.Info().Msg("Preparing notification transports")
	notifier, err := setupNotificationProducer(&config)
	if err != nil {
		return ExitStatusSenderError
	}
	defer closeNotifier(notifier)

	router, err := sender.New(&config, notifier)
	if err != nil {
		log.Err(err).Msg(operationFailedMessage)
		return ExitStatusSenderError
	}
	log.Info().Msg(separator)

	dispatcher := New(storage, router, router, &config)

	if cliFlags.Daemon {
		return runDaemon(dispatcher, &config)
	}

	exitCode := ExitStatusOK
	_, err = dispatcher.RunOnce()
	if err != nil {
		exitCode = ExitStatusStorageError
	}

	if metricsConfig.GatewayURL != "" {
		log.Info().Msg("Dispatcher finished. Pushing metrics to the configured prometheus gateway.")
		if err := pushMetrics(&metricsConfig); err != nil && exitCode == ExitStatusOK {
			exitCode = ExitStatusMetricsError
		}
	}

	log.Info().Msg(separator)
	return exitCode
}
