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

package types

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/types

import (
	"time"

	"github.com/google/uuid"
)

// Timestamp represents any timestamp in a form gathered from database
type Timestamp time.Time

// ObjectID represents primary key of any entity handled by the service
type ObjectID = uuid.UUID

// DBDriver type for db driver enum
type DBDriver int

const (
	// DBDriverSQLite3 shows that db driver is sqlite
	DBDriverSQLite3 DBDriver = iota
	// DBDriverPostgres shows that db driver is postgres
	DBDriverPostgres
	// DBDriverGeneral general sql(used for mock now)
	DBDriverGeneral
)

// PublicNote represents one row from `scheduled_maintenance_public_notes`
// table. Only the columns needed by the dispatch job are read.
type PublicNote struct {
	ID                     ObjectID
	Note                   string
	ScheduledMaintenanceID ObjectID
}

// ScheduledMaintenance represents a scheduled maintenance event together with
// IDs of all monitors and status pages attached to it.
type ScheduledMaintenance struct {
	ID            ObjectID
	ProjectID     ObjectID
	Title         string
	Description   string
	StartsAt      Timestamp
	MonitorIDs    []ObjectID
	StatusPageIDs []ObjectID
}

// StatusPageResource is a projection of a monitor onto a status page.
type StatusPageResource struct {
	ID           ObjectID
	DisplayName  string
	StatusPageID uuid.NullUUID
	MonitorID    ObjectID
}

// StatusPageDomain is a custom domain attached to a status page.
type StatusPageDomain struct {
	FullDomain       string
	IsCnameVerified  bool
	IsSslProvisioned bool
}

// SMTPConfig is a project specific mail server configured for a status page.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Secure    bool
}

// CallSMSConfig is a project specific Twilio account configured for a
// status page.
type CallSMSConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// StatusPage represents one status page with all settings that are needed
// to notify its subscribers.
type StatusPage struct {
	ID                                ObjectID
	ProjectID                         ObjectID
	Name                              string
	PageTitle                         string
	LogoFileID                        uuid.NullUUID
	IsPublicStatusPage                bool
	EnableEmailSubscribers            bool
	EnableSMSSubscribers              bool
	AllowSubscribersToChooseResources bool
	SMTPConfig                        *SMTPConfig
	CallSMSConfig                     *CallSMSConfig
	Domains                           []StatusPageDomain
}

// Subscriber represents one status page subscriber with its resource
// subscriptions.
type Subscriber struct {
	ID                         ObjectID
	StatusPageID               ObjectID
	Email                      string
	Phone                      string
	IsUnsubscribed             bool
	IsSubscribedToAllResources bool
	ResourceIDs                []ObjectID
}

// CliFlags represents structure holding all command line arguments/flags.
type CliFlags struct {
	RunOnce           bool
	Daemon            bool
	PrintPendingNotes bool
	ShowVersion       bool
	ShowAuthors       bool
	ShowConfiguration bool
	Verbose           bool
}

// Channel represents the way a notification is delivered
type Channel string

// Delivery channels
const (
	EmailChannel Channel = "email"
	SMSChannel   Channel = "sms"
)

// EmailTemplateType is an identifier of e-mail template known to mail
// backends.
type EmailTemplateType string

// Known e-mail templates
const (
	SubscriberScheduledMaintenanceEventNoteCreated EmailTemplateType = "SubscriberScheduledMaintenanceEventNoteCreated"
)

// EmailMessage is a templated e-mail addressed to one recipient.
type EmailMessage struct {
	ToEmail      string            `json:"to_email"`
	Subject      string            `json:"subject"`
	TemplateType EmailTemplateType `json:"template_type"`
	Vars         map[string]string `json:"vars"`
}

// SMS is a text message addressed to one phone number.
type SMS struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// ProducerMessage represents raw message produced to a message broker
type ProducerMessage []byte

// NotificationMessage represents content of messages sent to the
// notification backend topic in Kafka. Exactly one of Email or SMS is set.
type NotificationMessage struct {
	Channel   Channel       `json:"channel"`
	ProjectID string        `json:"project_id"`
	Timestamp string        `json:"timestamp"`
	Email     *EmailMessage `json:"email,omitempty"`
	SMS       *SMS          `json:"sms,omitempty"`
}

// ObjectIDSet is a set of object IDs
type ObjectIDSet map[ObjectID]struct{}

// MakeSetOfObjectIDs constructs a set from the given slice of IDs
func MakeSetOfObjectIDs(ids []ObjectID) ObjectIDSet {
	set := make(ObjectIDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains checks whether the set contains given ID
func (set ObjectIDSet) Contains(id ObjectID) bool {
	_, found := set[id]
	return found
}

// defaultStatusPageName is used when a status page has neither title nor name
const defaultStatusPageName = "Status Page"

// DisplayName returns the name used in notifications: page title, then
// name, then generic fallback.
func (statusPage *StatusPage) DisplayName() string {
	if statusPage.PageTitle != "" {
		return statusPage.PageTitle
	}
	if statusPage.Name != "" {
		return statusPage.Name
	}
	return defaultStatusPageName
}
