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

package sender

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// ErrNoMailServer is returned when neither global nor project mail server is
// configured
var ErrNoMailServer = errors.New("no SMTP server configured")

// Dialer opens connection to given mail server
type Dialer func(server *types.SMTPConfig) (gomail.SendCloser, error)

// SMTPSender delivers e-mails through SMTP server
type SMTPSender struct {
	server *types.SMTPConfig
	dial   Dialer
}

// NewSMTPSender constructs sender for globally configured mail server. The
// sender also serves project mail servers passed in MailOptions.
func NewSMTPSender(configuration *conf.EmailConfiguration) *SMTPSender {
	var server *types.SMTPConfig
	if configuration.SMTPHost != "" {
		server = &types.SMTPConfig{
			Host:      configuration.SMTPHost,
			Port:      configuration.SMTPPort,
			Username:  configuration.SMTPUsername,
			Password:  configuration.SMTPPassword,
			FromEmail: configuration.FromEmail,
			FromName:  configuration.FromName,
			Secure:    configuration.SMTPSecure,
		}
	}
	return NewSMTPSenderWithDialer(server, dialSMTP)
}

// NewSMTPSenderWithDialer constructs sender that uses given dialer
func NewSMTPSenderWithDialer(server *types.SMTPConfig, dial Dialer) *SMTPSender {
	return &SMTPSender{
		server: server,
		dial:   dial,
	}
}

func dialSMTP(server *types.SMTPConfig) (gomail.SendCloser, error) {
	dialer := gomail.NewDialer(server.Host, server.Port, server.Username, server.Password)
	// implicit TLS, otherwise STARTTLS is negotiated when offered
	dialer.SSL = server.Secure && server.Port == 465
	return dialer.Dial()
}

// SendMail sends e-mail through project mail server, or through global one
// when the project has none
func (sender *SMTPSender) SendMail(message *types.EmailMessage, options MailOptions) error {
	server := options.MailServer
	if server == nil {
		server = sender.server
	}
	if server == nil {
		return ErrNoMailServer
	}

	msg, err := buildMessage(message, server)
	if err != nil {
		return err
	}

	connection, err := sender.dial(server)
	if err != nil {
		log.Error().Err(err).Str("host", server.Host).Int("port", server.Port).Msg("Unable to connect to SMTP server")
		return err
	}
	defer func() {
		if err := connection.Close(); err != nil {
			log.Error().Err(err).Msg("Unable to close connection to SMTP server")
		}
	}()

	return gomail.Send(connection, msg)
}

func buildMessage(message *types.EmailMessage, server *types.SMTPConfig) (*gomail.Message, error) {
	body, err := renderEmailBody(message)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", server.FromEmail, server.FromName)
	msg.SetHeader("To", message.ToEmail)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/html", body)
	return msg, nil
}
