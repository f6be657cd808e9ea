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
package dispatcher_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/dispatcher"
	"github.com/RedHatInsights/maintenance-notification-service/sender"
	"github.com/RedHatInsights/maintenance-notification-service/tests/mocks"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

var errTransport = errors.New("transport is not available")

func newTestEngine(mail *mocks.MailSender, sms *mocks.SMSSender) *dispatcher.Engine {
	links := dispatcher.NewLinkBuilder(&conf.NotificationsConfiguration{Host: "oneuptime.com"})
	return dispatcher.NewEngine(mail, sms, links, 2)
}

func newTestDelivery(statusPage *types.StatusPage) *dispatcher.NoteDelivery {
	return &dispatcher.NoteDelivery{
		NoteID:   noteID1,
		NoteHTML: "<p>Upgrade <strong>postponed</strong></p>",
		Event: &types.ScheduledMaintenance{
			ID:          eventID,
			ProjectID:   projectID,
			Title:       "Database upgrade",
			Description: "Primary database will be upgraded",
			StartsAt:    types.Timestamp(startsAt),
		},
		StatusPage: statusPage,
		AffectedResources: []types.StatusPageResource{
			{ID: resourceID1, DisplayName: "API"},
			{ID: resourceID2, DisplayName: "Website"},
		},
	}
}

func bothChannelsPage() *types.StatusPage {
	return &types.StatusPage{
		ID:                     statusPageID1,
		ProjectID:              projectID,
		Name:                   "acme",
		PageTitle:              "Acme Status",
		IsPublicStatusPage:     true,
		EnableEmailSubscribers: true,
		EnableSMSSubscribers:   true,
	}
}

func resultsByChannel(results []dispatcher.SendResult, channel types.Channel) map[types.ObjectID]error {
	byChannel := map[types.ObjectID]error{}
	for _, result := range results {
		if result.Channel == channel {
			byChannel[result.SubscriberID] = result.Err
		}
	}
	return byChannel
}

// TestDispatchEmailPayload checks subject, template and variables of e-mail
func TestDispatchEmailPayload(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}
	statusPage := bothChannelsPage()
	statusPage.EnableSMSSubscribers = false
	statusPage.LogoFileID.UUID = logoFileID
	statusPage.LogoFileID.Valid = true

	var sent *types.EmailMessage
	mail.On("SendMail", mock.Anything, sender.MailOptions{ProjectID: projectID}).
		Run(func(args mock.Arguments) {
			sent = args.Get(0).(*types.EmailMessage)
		}).
		Return(nil)

	results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(statusPage), []types.Subscriber{
		{ID: subscriberID1, Email: "one@example.com", Phone: "+15550101"},
	})

	assert.Equal(t, []dispatcher.SendResult{{SubscriberID: subscriberID1, Channel: types.EmailChannel}}, results)
	mail.AssertExpectations(t)
	sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)

	assert.Equal(t, "one@example.com", sent.ToEmail)
	assert.Equal(t, "[Scheduled Maintenance Update] Acme Status", sent.Subject)
	assert.Equal(t, types.SubscriberScheduledMaintenanceEventNoteCreated, sent.TemplateType)

	statusPageURL := "https://oneuptime.com/status-page/" + statusPageID1.String()
	assert.Equal(t, map[string]string{
		"note":               "<p>Upgrade <strong>postponed</strong></p>",
		"statusPageName":     "Acme Status",
		"statusPageUrl":      statusPageURL,
		"logoUrl":            "https://oneuptime.com/file/image/" + logoFileID.String(),
		"isPublicStatusPage": "true",
		"resourcesAffected":  "API, Website",
		"scheduledAt":        "Mar 01, 2024 10:00 UTC",
		"eventTitle":         "Database upgrade",
		"eventDescription":   "Primary database will be upgraded",
		"unsubscribeUrl":     statusPageURL + "/update-subscription/" + subscriberID1.String(),
	}, sent.Vars)
}

// TestDispatchSMSPayload checks text of SMS
func TestDispatchSMSPayload(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}
	statusPage := bothChannelsPage()
	statusPage.EnableEmailSubscribers = false
	statusPage.CallSMSConfig = &types.CallSMSConfig{AccountSID: "AC1", AuthToken: "t", PhoneNumber: "+15550000"}

	var sent *types.SMS
	sms.On("SendSMS", mock.Anything, sender.SMSOptions{ProjectID: projectID, TwilioConfig: statusPage.CallSMSConfig}).
		Run(func(args mock.Arguments) {
			sent = args.Get(0).(*types.SMS)
		}).
		Return(nil)

	results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(statusPage), []types.Subscriber{
		{ID: subscriberID1, Email: "one@example.com", Phone: "+15550101"},
	})

	assert.Equal(t, []dispatcher.SendResult{{SubscriberID: subscriberID1, Channel: types.SMSChannel}}, results)
	sms.AssertExpectations(t)
	mail.AssertNotCalled(t, "SendMail", mock.Anything, mock.Anything)

	statusPageURL := "https://oneuptime.com/status-page/" + statusPageID1.String()
	assert.Equal(t, "+15550101", sent.To)
	assert.Equal(t, "Acme Status - New note has been posted to maintenance event.\n\n"+
		"Database upgrade\n\n"+
		"To view this note, visit "+statusPageURL+"\n\n"+
		"To update notification preferences or unsubscribe, visit "+statusPageURL+"/update-subscription/"+subscriberID1.String(),
		sent.Message)
}

// TestDispatchChannelGating checks that channel is used only when enabled on
// status page and when subscriber has the contact
func TestDispatchChannelGating(t *testing.T) {
	testcases := []struct {
		name       string
		emailOn    bool
		smsOn      bool
		subscriber types.Subscriber
		expected   []types.Channel
	}{
		{"both enabled, both contacts", true, true,
			types.Subscriber{ID: subscriberID1, Email: "a@example.com", Phone: "+1"},
			[]types.Channel{types.SMSChannel, types.EmailChannel}},
		{"both enabled, only e-mail", true, true,
			types.Subscriber{ID: subscriberID1, Email: "a@example.com"},
			[]types.Channel{types.EmailChannel}},
		{"both enabled, only phone", true, true,
			types.Subscriber{ID: subscriberID1, Phone: "+1"},
			[]types.Channel{types.SMSChannel}},
		{"both enabled, no contact", true, true,
			types.Subscriber{ID: subscriberID1},
			nil},
		{"both disabled", false, false,
			types.Subscriber{ID: subscriberID1, Email: "a@example.com", Phone: "+1"},
			nil},
		{"only e-mail enabled", true, false,
			types.Subscriber{ID: subscriberID1, Email: "a@example.com", Phone: "+1"},
			[]types.Channel{types.EmailChannel}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			mail := mocks.MailSender{}
			sms := mocks.SMSSender{}
			mail.On("SendMail", mock.Anything, mock.Anything).Return(nil)
			sms.On("SendSMS", mock.Anything, mock.Anything).Return(nil)

			statusPage := bothChannelsPage()
			statusPage.EnableEmailSubscribers = tc.emailOn
			statusPage.EnableSMSSubscribers = tc.smsOn

			results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(statusPage), []types.Subscriber{tc.subscriber})

			channels := []types.Channel{}
			for _, result := range results {
				assert.NoError(t, result.Err)
				channels = append(channels, result.Channel)
			}
			assert.ElementsMatch(t, tc.expected, channels)
		})
	}
}

// TestDispatchPartialFailure checks that failure of one send does not
// prevent other sends
func TestDispatchPartialFailure(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}

	isRecipient := func(address string) interface{} {
		return mock.MatchedBy(func(message *types.EmailMessage) bool {
			return message.ToEmail == address
		})
	}
	mail.On("SendMail", isRecipient("one@example.com"), mock.Anything).Return(nil).Once()
	mail.On("SendMail", isRecipient("two@example.com"), mock.Anything).Return(errTransport).Once()
	mail.On("SendMail", isRecipient("three@example.com"), mock.Anything).Return(nil).Once()
	sms.On("SendSMS", mock.Anything, mock.Anything).Return(nil).Times(3)

	results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(bothChannelsPage()), []types.Subscriber{
		{ID: subscriberID1, Email: "one@example.com", Phone: "+15550101"},
		{ID: subscriberID2, Email: "two@example.com", Phone: "+15550102"},
		{ID: subscriberID3, Email: "three@example.com", Phone: "+15550103"},
	})

	assert.Len(t, results, 6)
	mail.AssertExpectations(t)
	sms.AssertExpectations(t)

	emails := resultsByChannel(results, types.EmailChannel)
	assert.NoError(t, emails[subscriberID1])
	assert.ErrorIs(t, emails[subscriberID2], errTransport)
	assert.NoError(t, emails[subscriberID3])

	for id, err := range resultsByChannel(results, types.SMSChannel) {
		assert.NoError(t, err, id.String())
	}
}

// TestDispatchPerSubscriberUnsubscribeLink checks that every e-mail carries
// link of its own subscriber
func TestDispatchPerSubscriberUnsubscribeLink(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}
	statusPage := bothChannelsPage()
	statusPage.EnableSMSSubscribers = false

	mail.On("SendMail", mock.MatchedBy(func(message *types.EmailMessage) bool {
		local := strings.Split(message.ToEmail, "@")[0]
		return strings.HasSuffix(message.Vars["unsubscribeUrl"], local)
	}), mock.Anything).Return(nil).Twice()

	results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(statusPage), []types.Subscriber{
		{ID: subscriberID1, Email: subscriberID1.String() + "@example.com"},
		{ID: subscriberID2, Email: subscriberID2.String() + "@example.com"},
	})

	assert.Len(t, results, 2)
	mail.AssertExpectations(t)
}

// TestDispatchNoSubscribers checks that nothing is sent to empty list
func TestDispatchNoSubscribers(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}

	results := newTestEngine(&mail, &sms).Dispatch(newTestDelivery(bothChannelsPage()), nil)

	assert.Empty(t, results)
	mail.AssertNotCalled(t, "SendMail", mock.Anything, mock.Anything)
	sms.AssertNotCalled(t, "SendSMS", mock.Anything, mock.Anything)
}

// TestDispatchWithoutStartTime checks that missing start time gives empty
// variable
func TestDispatchWithoutStartTime(t *testing.T) {
	mail := mocks.MailSender{}
	sms := mocks.SMSSender{}
	statusPage := bothChannelsPage()
	delivery := newTestDelivery(statusPage)
	delivery.Event.StartsAt = types.Timestamp{}

	mail.On("SendMail", mock.MatchedBy(func(message *types.EmailMessage) bool {
		return message.Vars["scheduledAt"] == ""
	}), mock.Anything).Return(nil).Once()

	newTestEngine(&mail, &sms).Dispatch(delivery, []types.Subscriber{
		{ID: subscriberID1, Email: "one@example.com"},
	})
	mail.AssertExpectations(t)
}
