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

// Package sender contains transports used to deliver e-mails and SMS to
// status page subscribers. Messages are routed either to the transport
// configured for the whole service, or to mail server and Twilio account
// configured for the status page project.
package sender

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/sender

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/producer"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// MailOptions contains per message delivery settings
type MailOptions struct {
	ProjectID  types.ObjectID
	MailServer *types.SMTPConfig
}

// SMSOptions contains per message delivery settings
type SMSOptions struct {
	ProjectID    types.ObjectID
	TwilioConfig *types.CallSMSConfig
}

// MailSender represents any e-mail transport
type MailSender interface {
	SendMail(message *types.EmailMessage, options MailOptions) error
}

// SMSSender represents any SMS transport
type SMSSender interface {
	SendSMS(sms *types.SMS, options SMSOptions) error
}

// Router is an implementation of MailSender and SMSSender that chooses the
// transport for each message. Project specific mail server or Twilio account
// always takes precedence over globally configured transport.
type Router struct {
	mail   MailSender
	sms    SMSSender
	smtp   MailSender
	twilio SMSSender
}

// NewRouter constructs router from already prepared transports
func NewRouter(mail MailSender, sms SMSSender, smtp MailSender, twilio SMSSender) *Router {
	return &Router{
		mail:   mail,
		sms:    sms,
		smtp:   smtp,
		twilio: twilio,
	}
}

// New constructs router with transports selected by configuration. Kafka
// producer is used by providers that publish notification requests.
func New(config *conf.ConfigStruct, notifier producer.Producer) (*Router, error) {
	emailConfig := conf.GetEmailConfiguration(config)
	smsConfig := conf.GetSMSConfiguration(config)

	kafkaSender := NewProducerSender(notifier)
	smtpSender := NewSMTPSender(&emailConfig)
	twilioSender := NewTwilioSender(&smsConfig)

	var mail MailSender
	switch emailConfig.Provider {
	case conf.ProviderKafka:
		mail = kafkaSender
	case conf.ProviderSMTP:
		mail = smtpSender
	case conf.ProviderResend:
		mail = NewResendSender(&emailConfig)
	default:
		return nil, fmt.Errorf("unknown e-mail provider %q", emailConfig.Provider)
	}

	var sms SMSSender
	switch smsConfig.Provider {
	case conf.ProviderKafka:
		sms = kafkaSender
	case conf.ProviderTwilio:
		sms = twilioSender
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", smsConfig.Provider)
	}

	log.Info().
		Str("e-mail provider", emailConfig.Provider).
		Str("SMS provider", smsConfig.Provider).
		Msg("Senders configured")

	return NewRouter(mail, sms, smtpSender, twilioSender), nil
}

// SendMail sends e-mail using project mail server when configured, otherwise
// using the global transport
func (router *Router) SendMail(message *types.EmailMessage, options MailOptions) error {
	if options.MailServer != nil {
		return router.smtp.SendMail(message, options)
	}
	return router.mail.SendMail(message, options)
}

// SendSMS sends SMS using project Twilio account when configured, otherwise
// using the global transport
func (router *Router) SendSMS(sms *types.SMS, options SMSOptions) error {
	if options.TwilioConfig != nil {
		return router.twilio.SendSMS(sms, options)
	}
	return router.sms.SendSMS(sms, options)
}
