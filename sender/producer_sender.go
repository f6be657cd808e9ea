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
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/producer"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// ProducerSender publishes e-mail and SMS requests as notification messages
// to the notification backend topic
type ProducerSender struct {
	notifier producer.Producer
	now      func() time.Time
}

// NewProducerSender constructs sender on top of given producer
func NewProducerSender(notifier producer.Producer) *ProducerSender {
	return &ProducerSender{
		notifier: notifier,
		now:      time.Now,
	}
}

// SendMail publishes e-mail request
func (sender *ProducerSender) SendMail(message *types.EmailMessage, options MailOptions) error {
	return sender.produce(types.NotificationMessage{
		Channel:   types.EmailChannel,
		ProjectID: options.ProjectID.String(),
		Timestamp: sender.now().UTC().Format(time.RFC3339Nano),
		Email:     message,
	})
}

// SendSMS publishes SMS request
func (sender *ProducerSender) SendSMS(sms *types.SMS, options SMSOptions) error {
	return sender.produce(types.NotificationMessage{
		Channel:   types.SMSChannel,
		ProjectID: options.ProjectID.String(),
		Timestamp: sender.now().UTC().Format(time.RFC3339Nano),
		SMS:       sms,
	})
}

func (sender *ProducerSender) produce(notification types.NotificationMessage) error {
	msgBytes, err := json.Marshal(notification)
	if err != nil {
		log.Error().Err(err).Msg("The provided content cannot be encoded as JSON.")
		return err
	}

	_, _, err = sender.notifier.ProduceMessage(msgBytes)
	return err
}
