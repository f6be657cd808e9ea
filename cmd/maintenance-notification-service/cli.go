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

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Exit codes
const (
	// ExitStatusOK means that the tool finished with success
	ExitStatusOK = iota
	// ExitStatusConfiguration is an error code related to program configuration
	ExitStatusConfiguration
)

const (
	versionMessage = "Maintenance notification service version 1.0"
	authorsMessage = "Red Hat Inc."
)

// showVersion function displays version information.
func showVersion() {
	fmt.Println(versionMessage)
}

// setupCliFlags defines and parses all command line options
func setupCliFlags() types.CliFlags {
	var cliFlags types.CliFlags
	flag.BoolVar(&cliFlags.RunOnce, "run-once", false, "process all pending notes once and exit")
	flag.BoolVar(&cliFlags.Daemon, "daemon", false, "process pending notes on configured schedule")
	flag.BoolVar(&cliFlags.PrintPendingNotes, "print-pending-notes", false, "print notes waiting for dispatch and exit")
	flag.BoolVar(&cliFlags.ShowVersion, "show-version", false, "show version and exit")
	flag.BoolVar(&cliFlags.ShowAuthors, "show-authors", false, "show authors and exit")
	flag.BoolVar(&cliFlags.ShowConfiguration, "show-configuration", false, "show configuration and exit")
	flag.BoolVar(&cliFlags.Verbose, "verbose", false, "verbose logs")
	flag.Parse()
	return cliFlags
}

// showAuthors function displays information about authors.
func showAuthors() {
	fmt.Println(authorsMessage)
}

// showConfiguration function displays actual configuration.
func showConfiguration(config *conf.ConfigStruct) {
	brokerConfig := conf.GetKafkaBrokerConfiguration(config)
	log.Info().
		Bool("Enabled", brokerConfig.Enabled).
		Str("Addresses", brokerConfig.Addresses).
		Str("SecurityProtocol", brokerConfig.SecurityProtocol).
		Str("SaslMechanism", brokerConfig.SaslMechanism).
		Str("Topic", brokerConfig.Topic).
		Str("Timeout", brokerConfig.Timeout.String()).
		Msg("Broker configuration")

	storageConfig := conf.GetStorageConfiguration(config)
	log.Info().
		Str("Driver", storageConfig.Driver).
		Str("DB Name", storageConfig.PGDBName).
		Str("Username", storageConfig.PGUsername). // password is omitted on purpose
		Str("Host", storageConfig.PGHost).
		Int("Port", storageConfig.PGPort).
		Bool("LogSQLQueries", storageConfig.LogSQLQueries).
		Str("Parameters", storageConfig.PGParams).
		Int("Limit max", storageConfig.LimitMax).
		Int("Limit per project", storageConfig.LimitPerProject).
		Msg("Storage configuration")

	// credentials are omitted on purpose
	emailConfig := conf.GetEmailConfiguration(config)
	log.Info().
		Str("Provider", emailConfig.Provider).
		Str("From", emailConfig.FromEmail).
		Str("SMTP host", emailConfig.SMTPHost).
		Int("SMTP port", emailConfig.SMTPPort).
		Bool("SMTP secure", emailConfig.SMTPSecure).
		Msg("E-mail configuration")

	smsConfig := conf.GetSMSConfiguration(config)
	log.Info().
		Str("Provider", smsConfig.Provider).
		Str("URL", smsConfig.URL).
		Str("From", smsConfig.TwilioFromNumber).
		Str("Timeout", smsConfig.Timeout.String()).
		Msg("SMS configuration")

	loggingConfig := conf.GetLoggingConfiguration(config)
	log.Info().
		Str("Level", loggingConfig.LogLevel).
		Bool("Pretty colored debug logging", loggingConfig.Debug).
		Msg("Logging configuration")

	notificationConfig := conf.GetNotificationsConfiguration(config)
	log.Info().
		Str("Host", notificationConfig.Host).
		Str("HTTP protocol", notificationConfig.HTTPProtocol).
		Bool("Signed unsubscribe links", notificationConfig.UnsubscribeSecret != "").
		Int("Max concurrent sends", notificationConfig.MaxConcurrentSends).
		Msg("Notifications configuration")

	schedulerConfig := conf.GetSchedulerConfiguration(config)
	log.Info().
		Str("Schedule", schedulerConfig.Schedule).
		Bool("Run on startup", schedulerConfig.RunOnStartup).
		Msg("Scheduler configuration")

	metricsConfig := conf.GetMetricsConfiguration(config)

	// Authentication token is omitted on purpose
	log.Info().
		Str("Namespace", metricsConfig.Namespace).
		Str("Subsystem", metricsConfig.Subsystem).
		Str("Push Gateway", metricsConfig.GatewayURL).
		Int("Retries", metricsConfig.Retries).
		Str("Retry after", metricsConfig.RetryAfter.String()).
		Str("Address", metricsConfig.Address).
		Msg("Metrics configuration")

	processingConfig := conf.GetProcessingConfiguration(config)
	log.Info().
		Bool("Filter allowed status pages", processingConfig.FilterAllowedStatusPages).
		Strs("List of allowed status pages", processingConfig.AllowedStatusPages).
		Bool("Filter blocked status pages", processingConfig.FilterBlockedStatusPages).
		Strs("List of blocked status pages", processingConfig.BlockedStatusPages).
		Msg("Processing configuration")
}

// selectedModes function returns how many operation modes were requested
func selectedModes(args *types.CliFlags) int {
	modes := 0
	for _, selected := range []bool{args.RunOnce, args.Daemon, args.PrintPendingNotes} {
		if selected {
			modes++
		}
	}
	return modes
}

// checkArgs function handles command line options passed to the process
func checkArgs(args *types.CliFlags) {
	switch {
	case args.ShowVersion:
		showVersion()
		os.Exit(ExitStatusOK)
	case args.ShowAuthors:
		showAuthors()
		os.Exit(ExitStatusOK)
	case args.ShowConfiguration:
		// config not loaded yet, just skip the rest of function for
		// now
		return
	default:
	}

	if selectedModes(args) != 1 {
		log.Error().Msg("Exactly one of -run-once, -daemon or -print-pending-notes needs to be specified on command line")
		os.Exit(ExitStatusConfiguration)
	}
}

func convertLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}

	return zerolog.DebugLevel
}
