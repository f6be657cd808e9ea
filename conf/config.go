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

package conf

// This source file contains definition of data type named ConfigStruct that
// represents configuration of Maintenance notification service. This source
// file also contains function named LoadConfiguration that can be used to
// load configuration from provided configuration file and/or from
// environment variables. Additionally several specific functions named
// GetStorageConfiguration, GetLoggingConfiguration,
// GetKafkaBrokerConfiguration, GetEmailConfiguration, GetSMSConfiguration,
// GetNotificationsConfiguration, GetSchedulerConfiguration,
// GetProcessingConfiguration and GetMetricsConfiguration are to be used to
// return specific configuration options.

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/conf

// Default name of configuration file is config.toml
// It can be changed via environment variable
// MAINTENANCE_NOTIFICATION_SERVICE_CONFIG_FILE

// An example of configuration file that can be used in devel environment:
//
// [storage]
// db_driver = "postgres"
// pg_username = "user"
// pg_password = "password"
// pg_host = "localhost"
// pg_port = 5432
// pg_db_name = "oneuptime"
// pg_params = "sslmode=disable"
// log_sql_queries = true
//
// [logging]
// debug = true
// log_level = ""
//
// [scheduler]
// schedule = "* * * * *"
// run_on_startup = false
//
// Environment variables that can be used to override configuration file
// settings have the MAINTENANCE_NOTIFICATION_SERVICE_ prefix, for example
// MAINTENANCE_NOTIFICATION_SERVICE__STORAGE__PG_PASSWORD

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/RedHatInsights/insights-operator-utils/logger"
	clowder "github.com/redhatinsights/app-common-go/pkg/api/v1"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Common constants used by the configuration loader
const (
	// ConfigFileEnvVariableName is name of environment variable that
	// contains name of configuration file
	ConfigFileEnvVariableName = "MAINTENANCE_NOTIFICATION_SERVICE_CONFIG_FILE"

	// DefaultConfigFileName is name of default configuration file
	DefaultConfigFileName = "config"

	envPrefix = "MAINTENANCE_NOTIFICATION_SERVICE_"

	// noBrokerConfig is logged when Clowder provides no Kafka brokers
	noBrokerConfig = "warning: no broker configurations found in clowder config"
	// noSaslConfig is logged when Clowder broker has no SASL settings
	noSaslConfig = "warning: SASL configuration is missing"
	// noTopicMapping is logged when topic is not mapped by Clowder
	noTopicMapping = "warning: no kafka mapping found for topic %s"
)

// Providers that can be selected for e-mail and SMS delivery
const (
	ProviderKafka  = "kafka"
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
	ProviderTwilio = "twilio"
)

// ConfigStruct is a structure holding the whole maintenance notification
// service configuration
type ConfigStruct struct {
	Logging       logger.LoggingConfiguration       `mapstructure:"logging" toml:"logging"`
	CloudWatch    logger.CloudWatchConfiguration    `mapstructure:"cloudwatch" toml:"cloudwatch"`
	Sentry        logger.SentryLoggingConfiguration `mapstructure:"sentry" toml:"sentry"`
	KafkaZerolog  logger.KafkaZerologConfiguration  `mapstructure:"kafka_zerolog" toml:"kafka_zerolog"`
	Storage       StorageConfiguration              `mapstructure:"storage" toml:"storage"`
	Kafka         KafkaConfiguration                `mapstructure:"kafka_broker" toml:"kafka_broker"`
	Email         EmailConfiguration                `mapstructure:"email" toml:"email"`
	SMS           SMSConfiguration                  `mapstructure:"sms" toml:"sms"`
	Notifications NotificationsConfiguration        `mapstructure:"notifications" toml:"notifications"`
	Scheduler     SchedulerConfiguration            `mapstructure:"scheduler" toml:"scheduler"`
	Processing    ProcessingConfiguration           `mapstructure:"processing" toml:"processing"`
	Metrics       MetricsConfiguration              `mapstructure:"metrics" toml:"metrics"`
}

// StorageConfiguration represents configuration of the SQL data storage
type StorageConfiguration struct {
	Driver           string `mapstructure:"db_driver" toml:"db_driver"`
	SQLiteDataSource string `mapstructure:"sqlite_datasource" toml:"sqlite_datasource"`
	PGUsername       string `mapstructure:"pg_username" toml:"pg_username"`
	PGPassword       string `mapstructure:"pg_password" toml:"pg_password"`
	PGHost           string `mapstructure:"pg_host" toml:"pg_host"`
	PGPort           int    `mapstructure:"pg_port" toml:"pg_port"`
	PGDBName         string `mapstructure:"pg_db_name" toml:"pg_db_name"`
	PGParams         string `mapstructure:"pg_params" toml:"pg_params"`
	LogSQLQueries    bool   `mapstructure:"log_sql_queries" toml:"log_sql_queries"`

	// LimitMax caps number of notes taken by one run
	LimitMax int `mapstructure:"limit_max" toml:"limit_max"`

	// LimitPerProject caps number of status page resources read at once
	LimitPerProject int `mapstructure:"limit_per_project" toml:"limit_per_project"`
}

// KafkaConfiguration represents configuration of Kafka brokers and topics
type KafkaConfiguration struct {
	Enabled          bool          `mapstructure:"enabled"           toml:"enabled"`
	Addresses        string        `mapstructure:"addresses"         toml:"addresses"`
	SecurityProtocol string        `mapstructure:"security_protocol" toml:"security_protocol"`
	CertPath         string        `mapstructure:"cert_path"         toml:"cert_path"`
	SaslMechanism    string        `mapstructure:"sasl_mechanism"    toml:"sasl_mechanism"`
	SaslUsername     string        `mapstructure:"sasl_username"     toml:"sasl_username"`
	SaslPassword     string        `mapstructure:"sasl_password"     toml:"sasl_password"`
	Topic            string        `mapstructure:"topic"             toml:"topic"`
	Timeout          time.Duration `mapstructure:"timeout"           toml:"timeout"`
}

// EmailConfiguration represents configuration of the global mail transport.
// Status pages with their own SMTP server configured always use it.
type EmailConfiguration struct {
	Provider     string `mapstructure:"provider"       toml:"provider"`
	FromEmail    string `mapstructure:"from_email"     toml:"from_email"`
	FromName     string `mapstructure:"from_name"      toml:"from_name"`
	SMTPHost     string `mapstructure:"smtp_host"      toml:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"      toml:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"  toml:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"  toml:"smtp_password"`
	SMTPSecure   bool   `mapstructure:"smtp_secure"    toml:"smtp_secure"`
	ResendAPIKey string `mapstructure:"resend_api_key" toml:"resend_api_key"`
}

// SMSConfiguration represents configuration of the global SMS transport.
// Status pages with their own Twilio account configured always use it.
type SMSConfiguration struct {
	Provider         string        `mapstructure:"provider"           toml:"provider"`
	URL              string        `mapstructure:"url"                toml:"url"`
	TwilioAccountSID string        `mapstructure:"twilio_account_sid" toml:"twilio_account_sid"`
	TwilioAuthToken  string        `mapstructure:"twilio_auth_token"  toml:"twilio_auth_token"`
	TwilioFromNumber string        `mapstructure:"twilio_from_number" toml:"twilio_from_number"`
	Timeout          time.Duration `mapstructure:"timeout"            toml:"timeout"`
}

// NotificationsConfiguration represents the configuration specific to the
// content of notifications
type NotificationsConfiguration struct {
	Host               string `mapstructure:"host"                 toml:"host"`
	HTTPProtocol       string `mapstructure:"http_protocol"        toml:"http_protocol"`
	UnsubscribeSecret  string `mapstructure:"unsubscribe_secret"   toml:"unsubscribe_secret"`
	MaxConcurrentSends int    `mapstructure:"max_concurrent_sends" toml:"max_concurrent_sends"`
}

// SchedulerConfiguration represents configuration of the recurring trigger
type SchedulerConfiguration struct {
	Schedule     string `mapstructure:"schedule"       toml:"schedule"`
	RunOnStartup bool   `mapstructure:"run_on_startup" toml:"run_on_startup"`
}

// ProcessingConfiguration represents configuration of status page filters
type ProcessingConfiguration struct {
	FilterAllowedStatusPages bool     `mapstructure:"filter_allowed_status_pages" toml:"filter_allowed_status_pages"`
	AllowedStatusPages       []string `mapstructure:"allowed_status_pages"        toml:"allowed_status_pages"`
	FilterBlockedStatusPages bool     `mapstructure:"filter_blocked_status_pages" toml:"filter_blocked_status_pages"`
	BlockedStatusPages       []string `mapstructure:"blocked_status_pages"        toml:"blocked_status_pages"`
}

// MetricsConfiguration holds metrics related configuration
type MetricsConfiguration struct {
	Job              string        `mapstructure:"job_name"           toml:"job_name"`
	Namespace        string        `mapstructure:"namespace"          toml:"namespace"`
	Subsystem        string        `mapstructure:"subsystem"          toml:"subsystem"`
	GatewayURL       string        `mapstructure:"gateway_url"        toml:"gateway_url"`
	GatewayAuthToken string        `mapstructure:"gateway_auth_token" toml:"gateway_auth_token"`
	Retries          int           `mapstructure:"retries"            toml:"retries"`
	RetryAfter       time.Duration `mapstructure:"retry_after"        toml:"retry_after"`
	Address          string        `mapstructure:"address"            toml:"address"`
}

// LoadConfiguration loads configuration from defaultConfigFile, file set in
// configFileEnvVariableName or from env
func LoadConfiguration(configFileEnvVariableName, defaultConfigFile string) (ConfigStruct, error) {
	var config ConfigStruct

	// env. variable holding name of configuration file
	configFile, specified := os.LookupEnv(configFileEnvVariableName)
	if specified {
		// we need to separate the directory name and filename without
		// extension
		directory, basename := filepath.Split(configFile)
		file := strings.TrimSuffix(basename, filepath.Ext(basename))
		// parse the configuration
		viper.SetConfigName(file)
		viper.AddConfigPath(directory)
	} else {
		log.Info().Str("filename", defaultConfigFile).Msg("Parsing configuration file")
		// parse the configuration
		viper.SetConfigName(defaultConfigFile)
		viper.AddConfigPath(".")
	}

	// try to read the whole configuration
	err := viper.ReadInConfig()
	if _, isNotFoundError := err.(viper.ConfigFileNotFoundError); !specified && isNotFoundError {
		// If config file is not present (which might be correct in
		// some environment) we need to read configuration from
		// environment variables The problem is that Viper is not smart
		// enough to understand the structure of config by itself, so
		// we need to read fake config file
		fakeTomlConfigWriter := new(bytes.Buffer)

		err := toml.NewEncoder(fakeTomlConfigWriter).Encode(config)
		if err != nil {
			return config, err
		}

		fakeTomlConfig := fakeTomlConfigWriter.String()

		viper.SetConfigType("toml")

		err = viper.ReadConfig(strings.NewReader(fakeTomlConfig))
		if err != nil {
			return config, err
		}
	} else if err != nil {
		// error is processed on caller side
		return config, fmt.Errorf("fatal error config file: %s", err)
	}

	// override config from env if there's variable in env
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "__"))

	err = viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if clowder.IsClowderEnabled() {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is enabled")

		updateConfigFromClowder(&config)
	} else {
		// can not use Zerolog at this moment!
		fmt.Println("Clowder is disabled")
	}

	applyDefaults(&config)

	// everything's should be ok
	return config, nil
}

// DefaultLimitMax is hard ceiling on number of notes taken by one run
const DefaultLimitMax = 99999999

// applyDefaults fills in values that must never be left empty
func applyDefaults(config *ConfigStruct) {
	if config.Storage.LimitMax <= 0 {
		config.Storage.LimitMax = DefaultLimitMax
	}
	if config.Storage.LimitPerProject <= 0 {
		config.Storage.LimitPerProject = 10000
	}
	if config.Email.Provider == "" {
		config.Email.Provider = ProviderKafka
	}
	if config.SMS.Provider == "" {
		config.SMS.Provider = ProviderKafka
	}
	if config.Notifications.HTTPProtocol == "" {
		config.Notifications.HTTPProtocol = "https"
	}
	if config.Notifications.MaxConcurrentSends <= 0 {
		config.Notifications.MaxConcurrentSends = 32
	}
	if config.Scheduler.Schedule == "" {
		config.Scheduler.Schedule = "* * * * *"
	}
}

// updateConfigFromClowder replaces database and Kafka settings by values
// provided by Clowder
func updateConfigFromClowder(config *ConfigStruct) {
	if clowder.LoadedConfig == nil {
		fmt.Println("Clowder config is not loaded")
		return
	}

	if db := clowder.LoadedConfig.Database; db != nil {
		config.Storage.PGDBName = db.Name
		config.Storage.PGHost = db.Hostname
		config.Storage.PGPort = db.Port
		config.Storage.PGUsername = db.Username
		config.Storage.PGPassword = db.Password
	}

	if clowder.LoadedConfig.Kafka == nil || len(clowder.LoadedConfig.Kafka.Brokers) == 0 {
		fmt.Println(noBrokerConfig)
		return
	}

	broker := clowder.LoadedConfig.Kafka.Brokers[0]
	// port can be empty in clowder, so taking it into account
	if broker.Port != nil {
		config.Kafka.Addresses = fmt.Sprintf("%s:%d", broker.Hostname, *broker.Port)
	} else {
		config.Kafka.Addresses = broker.Hostname
	}

	if broker.Authtype != nil {
		fmt.Println("kafka is configured to use authentication")
		if broker.Sasl != nil {
			config.Kafka.SaslMechanism = stringOrEmpty(broker.Sasl.SaslMechanism)
			config.Kafka.SaslUsername = stringOrEmpty(broker.Sasl.Username)
			config.Kafka.SaslPassword = stringOrEmpty(broker.Sasl.Password)
			config.Kafka.SecurityProtocol = stringOrEmpty(broker.Sasl.SecurityProtocol)
			if caPath, err := clowder.LoadedConfig.KafkaCa(broker); err == nil {
				config.Kafka.CertPath = caPath
			}
		} else {
			fmt.Println(noSaslConfig)
		}
	}

	if topic, found := clowder.KafkaTopics[config.Kafka.Topic]; found {
		config.Kafka.Topic = topic.Name
	} else {
		fmt.Printf(noTopicMapping+"\n", config.Kafka.Topic)
	}
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// GetLoggingConfiguration returns logging configuration
func GetLoggingConfiguration(config *ConfigStruct) logger.LoggingConfiguration {
	return config.Logging
}

// GetCloudWatchConfiguration returns cloudwatch configuration
func GetCloudWatchConfiguration(config *ConfigStruct) logger.CloudWatchConfiguration {
	return config.CloudWatch
}

// GetSentryLoggingConfiguration returns the sentry log configuration
func GetSentryLoggingConfiguration(config *ConfigStruct) logger.SentryLoggingConfiguration {
	return config.Sentry
}

// GetKafkaZerologConfiguration returns the kafkazero log configuration
func GetKafkaZerologConfiguration(config *ConfigStruct) logger.KafkaZerologConfiguration {
	return config.KafkaZerolog
}

// GetStorageConfiguration returns storage configuration
func GetStorageConfiguration(config *ConfigStruct) StorageConfiguration {
	return config.Storage
}

// GetKafkaBrokerConfiguration returns kafka broker configuration
func GetKafkaBrokerConfiguration(config *ConfigStruct) KafkaConfiguration {
	return config.Kafka
}

// GetEmailConfiguration returns e-mail transport configuration
func GetEmailConfiguration(config *ConfigStruct) EmailConfiguration {
	return config.Email
}

// GetSMSConfiguration returns SMS transport configuration
func GetSMSConfiguration(config *ConfigStruct) SMSConfiguration {
	return config.SMS
}

// GetNotificationsConfiguration returns configuration related with
// notification content
func GetNotificationsConfiguration(config *ConfigStruct) NotificationsConfiguration {
	return config.Notifications
}

// GetSchedulerConfiguration returns scheduler configuration
func GetSchedulerConfiguration(config *ConfigStruct) SchedulerConfiguration {
	return config.Scheduler
}

// GetProcessingConfiguration returns processing configuration
func GetProcessingConfiguration(config *ConfigStruct) ProcessingConfiguration {
	return config.Processing
}

// GetMetricsConfiguration returns metrics configuration
func GetMetricsConfiguration(config *ConfigStruct) MetricsConfiguration {
	return config.Metrics
}
