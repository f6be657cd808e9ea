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
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// ResendSender delivers e-mails through Resend API
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender constructs sender using configured API key
func NewResendSender(configuration *conf.EmailConfiguration) *ResendSender {
	return NewResendSenderWithClient(resend.NewClient(configuration.ResendAPIKey), configuration)
}

// NewResendSenderWithClient constructs sender on top of prepared client
func NewResendSenderWithClient(client *resend.Client, configuration *conf.EmailConfiguration) *ResendSender {
	from := configuration.FromEmail
	if configuration.FromName != "" {
		from = fmt.Sprintf("%s <%s>", configuration.FromName, configuration.FromEmail)
	}
	return &ResendSender{
		client: client,
		from:   from,
	}
}

// SendMail sends e-mail via Resend
func (sender *ResendSender) SendMail(message *types.EmailMessage, options MailOptions) error {
	body, err := renderEmailBody(message)
	if err != nil {
		return err
	}

	sent, err := sender.client.Emails.Send(&resend.SendEmailRequest{
		From:    sender.from,
		To:      []string{message.ToEmail},
		Subject: message.Subject,
		Html:    body,
	})
	if err != nil {
		log.Error().Err(err).Str("project", options.ProjectID.String()).Msg("Resend API refused e-mail")
		return err
	}

	log.Debug().Str("id", sent.Id).Msg("E-mail accepted by Resend")
	return nil
}
