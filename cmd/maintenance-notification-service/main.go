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

// Entry point to the maintenance notification service.
//
// The service notifies status page subscribers about public notes posted to
// scheduled maintenance events. Notes that were not notified yet are read
// from the PostgreSQL database, every note is marked as notified before
// anything is sent, and e-mails and SMS are then sent to all subscribers
// interested in resources affected by the maintenance.
//
// In the run-once mode the service processes pending notes and exits, which
// is suitable for a cronjob. Optionally metrics are pushed to Prometheus push
// gateway at the end. In the daemon mode the job is triggered on configured
// cron schedule (every minute by default) and metrics are exposed on the
// /metrics endpoint.
//
// E-mails and SMS are either produced as notification requests to the
// configured Kafka topic, or delivered directly through SMTP, Resend or
// Twilio. Status pages with their own SMTP server or Twilio account always
// use them.
package main

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/

import (
	"os"

	"github.com/RedHatInsights/insights-operator-utils/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/dispatcher"
)

// Configuration-related constants
const (
	loadConfigurationMessage = "Load configuration"
)

func main() {
	cliFlags := setupCliFlags()
	checkArgs(&cliFlags)

	// config has exactly the same structure as *.toml file
	config, err := conf.LoadConfiguration(conf.ConfigFileEnvVariableName, conf.DefaultConfigFileName)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		os.Exit(ExitStatusConfiguration)
	}

	err = logger.InitZerolog(
		conf.GetLoggingConfiguration(&config),
		conf.GetCloudWatchConfiguration(&config),
		conf.GetSentryLoggingConfiguration(&config),
		conf.GetKafkaZerologConfiguration(&config),
	)
	if err != nil {
		log.Err(err).Msg(loadConfigurationMessage)
		os.Exit(ExitStatusConfiguration)
	}

	// configuration is loaded, so it would be possible to display it if
	// asked by user
	if cliFlags.ShowConfiguration {
		showConfiguration(&config)
		os.Exit(ExitStatusOK)
	}

	if config.Logging.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	logLevel := convertLogLevel(config.Logging.LogLevel)
	zerolog.SetGlobalLevel(logLevel)
	log.Info().
		Str("configured", config.Logging.LogLevel).
		Int("internal", int(logLevel)).
		Msg("Log level")

	if cliFlags.Verbose {
		showConfiguration(&config)
	}

	os.Exit(dispatcher.Run(config, cliFlags))
}
