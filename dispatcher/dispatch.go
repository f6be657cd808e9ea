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

package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/RedHatInsights/maintenance-notification-service/sender"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Constants used to compose notifications
const (
	emailSubjectPrefix    = "[Scheduled Maintenance Update] "
	smsNoteCreatedMessage = "New note has been posted to maintenance event."
	scheduledAtLayout     = "Jan 02, 2006 15:04 MST"

	// DefaultMaxConcurrentSends is used when concurrency is not configured
	DefaultMaxConcurrentSends = 32
)

// E-mail template variables
const (
	varNote               = "note"
	varStatusPageName     = "statusPageName"
	varStatusPageURL      = "statusPageUrl"
	varLogoURL            = "logoUrl"
	varIsPublicStatusPage = "isPublicStatusPage"
	varResourcesAffected  = "resourcesAffected"
	varScheduledAt        = "scheduledAt"
	varEventTitle         = "eventTitle"
	varEventDescription   = "eventDescription"
	varUnsubscribeURL     = "unsubscribeUrl"
)

// SendResult is settled result of one send task
type SendResult struct {
	SubscriberID types.ObjectID
	Channel      types.Channel
	Err          error
}

// NoteDelivery contains read-only data shared by all sends of one note to
// one status page
type NoteDelivery struct {
	NoteID            types.ObjectID
	NoteHTML          string
	Event             *types.ScheduledMaintenance
	StatusPage        *types.StatusPage
	AffectedResources []types.StatusPageResource
}

// Engine sends e-mails and SMS to subscribers of one status page
type Engine struct {
	mail               sender.MailSender
	sms                sender.SMSSender
	links              *LinkBuilder
	maxConcurrentSends int
}

// NewEngine constructs dispatch engine
func NewEngine(mail sender.MailSender, sms sender.SMSSender, links *LinkBuilder, maxConcurrentSends int) *Engine {
	if maxConcurrentSends <= 0 {
		maxConcurrentSends = DefaultMaxConcurrentSends
	}
	return &Engine{
		mail:               mail,
		sms:                sms,
		links:              links,
		maxConcurrentSends: maxConcurrentSends,
	}
}

// Dispatch method sends notification to every given subscriber. Each send is
// an independent task; failure of one task never cancels the others. The
// method returns when all tasks are settled.
func (engine *Engine) Dispatch(delivery *NoteDelivery, subscribers []types.Subscriber) []SendResult {
	statusPage := delivery.StatusPage
	statusPageURL := engine.links.StatusPageURL(statusPage)
	templateVars := engine.sharedEmailVars(delivery, statusPageURL)
	smsHeader := composeSMSHeader(delivery)

	tasks := pool.NewWithResults[SendResult]().WithMaxGoroutines(engine.maxConcurrentSends)
	var settled []SendResult

	for i := range subscribers {
		subscriber := subscribers[i]

		wantsSMS := statusPage.EnableSMSSubscribers && subscriber.Phone != ""
		wantsEmail := statusPage.EnableEmailSubscribers && subscriber.Email != ""
		if !wantsSMS && !wantsEmail {
			continue
		}

		unsubscribeURL, err := engine.links.UnsubscribeURL(statusPageURL, statusPage, &subscriber)
		if err != nil {
			log.Error().Err(err).Str(SubscriberIDMessage, subscriber.ID.String()).Msg("Unable to construct unsubscribe link")
			if wantsSMS {
				settled = append(settled, SendResult{subscriber.ID, types.SMSChannel, err})
			}
			if wantsEmail {
				settled = append(settled, SendResult{subscriber.ID, types.EmailChannel, err})
			}
			continue
		}

		if wantsSMS {
			sms := &types.SMS{
				To:      subscriber.Phone,
				Message: composeSMSMessage(smsHeader, statusPageURL, unsubscribeURL),
			}
			options := sender.SMSOptions{
				ProjectID:    statusPage.ProjectID,
				TwilioConfig: statusPage.CallSMSConfig,
			}
			tasks.Go(func() SendResult {
				return SendResult{subscriber.ID, types.SMSChannel, engine.sms.SendSMS(sms, options)}
			})
		}

		if wantsEmail {
			email := &types.EmailMessage{
				ToEmail:      subscriber.Email,
				Subject:      emailSubjectPrefix + statusPage.DisplayName(),
				TemplateType: types.SubscriberScheduledMaintenanceEventNoteCreated,
				Vars:         withUnsubscribeURL(templateVars, unsubscribeURL),
			}
			options := sender.MailOptions{
				ProjectID:  statusPage.ProjectID,
				MailServer: statusPage.SMTPConfig,
			}
			tasks.Go(func() SendResult {
				return SendResult{subscriber.ID, types.EmailChannel, engine.mail.SendMail(email, options)}
			})
		}
	}

	settled = append(settled, tasks.Wait()...)
	reportResults(delivery, settled)
	return settled
}

// sharedEmailVars method prepares template variables that are the same for
// all subscribers of one status page
func (engine *Engine) sharedEmailVars(delivery *NoteDelivery, statusPageURL string) map[string]string {
	event := delivery.Event
	statusPage := delivery.StatusPage

	return map[string]string{
		varNote:               delivery.NoteHTML,
		varStatusPageName:     statusPage.DisplayName(),
		varStatusPageURL:      statusPageURL,
		varLogoURL:            engine.links.LogoURL(statusPage),
		varIsPublicStatusPage: strconv.FormatBool(statusPage.IsPublicStatusPage),
		varResourcesAffected:  resourceNames(delivery.AffectedResources),
		varScheduledAt:        formatScheduledAt(event.StartsAt),
		varEventTitle:         event.Title,
		varEventDescription:   event.Description,
	}
}

// withUnsubscribeURL function returns copy of shared variables extended by
// subscriber specific link
func withUnsubscribeURL(shared map[string]string, unsubscribeURL string) map[string]string {
	vars := make(map[string]string, len(shared)+1)
	for key, value := range shared {
		vars[key] = value
	}
	vars[varUnsubscribeURL] = unsubscribeURL
	return vars
}

func composeSMSHeader(delivery *NoteDelivery) string {
	return fmt.Sprintf("%s - %s\n\n%s",
		delivery.StatusPage.DisplayName(), smsNoteCreatedMessage, delivery.Event.Title)
}

func composeSMSMessage(header, statusPageURL, unsubscribeURL string) string {
	var builder strings.Builder
	builder.WriteString(header)
	builder.WriteString("\n\nTo view this note, visit ")
	builder.WriteString(statusPageURL)
	builder.WriteString("\n\nTo update notification preferences or unsubscribe, visit ")
	builder.WriteString(unsubscribeURL)
	return builder.String()
}

func formatScheduledAt(startsAt types.Timestamp) string {
	t := time.Time(startsAt)
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(scheduledAtLayout)
}

// reportResults function logs failed sends and updates counters
func reportResults(delivery *NoteDelivery, results []SendResult) {
	for _, result := range results {
		channel := string(result.Channel)
		if result.Err == nil {
			NotificationSent.WithLabelValues(channel).Inc()
			continue
		}
		NotificationFailed.WithLabelValues(channel).Inc()
		log.Error().
			Err(result.Err).
			Str(NoteIDMessage, delivery.NoteID.String()).
			Str(StatusPageIDMessage, delivery.StatusPage.ID.String()).
			Str(SubscriberIDMessage, result.SubscriberID.String()).
			Str("channel", channel).
			Msg("Unable to send notification")
	}
}

// countFailures function returns number of failed sends
func countFailures(results []SendResult) int {
	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
		}
	}
	return failures
}
