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

package dispatcher

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/dispatcher

// This source file contains an implementation of interface between Go code and
// (almost any) SQL database like PostgreSQL or SQLite.
//
// It is possible to configure connection to selected database by using
// StorageConfiguration structure. Currently that structure contains these
// configurable parameters:
//
// Driver - a SQL driver, like "sqlite3", "postgres" etc.
// SQLiteDataSource - data source used by SQLite driver
// PG* - connection parameters used by PostgreSQL driver
// LimitMax - max number of notes taken by one run
// LimitPerProject - max number of status page resources read at once

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // PostgreSQL database driver
	_ "github.com/mattn/go-sqlite3" // SQLite database driver

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Storage represents an interface to almost any database or storage system
type Storage interface {
	Close() error
	ReadUnnotifiedNotes(now time.Time) ([]types.PublicNote, error)
	MarkNoteAsNotified(noteID types.ObjectID) (bool, error)
	ReadScheduledMaintenance(eventID types.ObjectID) (*types.ScheduledMaintenance, error)
	ReadStatusPageResources(monitorIDs []types.ObjectID) ([]types.StatusPageResource, error)
	ReadStatusPagesToNotify(statusPageIDs []types.ObjectID) ([]types.StatusPage, error)
	ReadSubscribersByStatusPage(statusPageID types.ObjectID) ([]types.Subscriber, error)
	PrintPendingNotes(now time.Time) error
}

// DBStorage is an implementation of Storage interface that use selected SQL
// like database like SQLite, PostgreSQL, RDS etc. That implementation is based
// on the standard sql package. It is possible to configure connection via
// Configuration structure.
type DBStorage struct {
	connection      *sql.DB
	dbDriverType    types.DBDriver
	limitMax        int
	limitPerProject int
	logSQLQueries   bool
}

// Default limits used when storage is constructed from existing connection.
// DefaultLimitMax is a system ceiling only, so one run drains whole backlog.
const (
	DefaultLimitMax        = 99999999
	DefaultLimitPerProject = 10000
)

// error messages
const (
	unableToCloseDBRowsHandle = "Unable to close DB rows handle"
)

// other messages
const (
	NoteIDMessage       = "Note ID"
	EventIDMessage      = "Scheduled maintenance ID"
	StatusPageIDMessage = "Status page ID"
	SubscriberIDMessage = "Subscriber ID"
	CreatedAtMessage    = "Created at"
)

// SQL statements
const (
	// Select notes that are waiting for subscribers to be notified
	selectUnnotifiedNotes = `
		SELECT "_id", COALESCE("note", ''), "scheduledMaintenanceId"
		  FROM "ScheduledMaintenancePublicNote"
		 WHERE "isStatusPageSubscribersNotifiedOnNoteCreated" = FALSE
		   AND "shouldStatusPageSubscribersBeNotifiedOnNoteCreated" = TRUE
		   AND "createdAt" < $1
		   AND "deletedAt" IS NULL
		 ORDER BY "createdAt"
		 LIMIT $2
`

	// Display notes that are waiting for subscribers to be notified
	displayUnnotifiedNotes = `
		SELECT "_id", "scheduledMaintenanceId", "createdAt"
		  FROM "ScheduledMaintenancePublicNote"
		 WHERE "isStatusPageSubscribersNotifiedOnNoteCreated" = FALSE
		   AND "shouldStatusPageSubscribersBeNotifiedOnNoteCreated" = TRUE
		   AND "createdAt" < $1
		   AND "deletedAt" IS NULL
		 ORDER BY "createdAt"
		 LIMIT $2
`

	// Mark one note as notified, only when nobody else did it before
	markNoteAsNotified = `
		UPDATE "ScheduledMaintenancePublicNote"
		   SET "isStatusPageSubscribersNotifiedOnNoteCreated" = TRUE
		 WHERE "_id" = $1
		   AND "isStatusPageSubscribersNotifiedOnNoteCreated" = FALSE
`

	selectScheduledMaintenance = `
		SELECT "_id", "projectId", COALESCE("title", ''), COALESCE("description", ''), "startsAt"
		  FROM "ScheduledMaintenance"
		 WHERE "_id" = $1
		   AND "deletedAt" IS NULL
`

	selectScheduledMaintenanceMonitors = `
		SELECT "monitorId"
		  FROM "ScheduledMaintenanceMonitor"
		 WHERE "scheduledMaintenanceId" = $1
`

	selectScheduledMaintenanceStatusPages = `
		SELECT "statusPageId"
		  FROM "ScheduledMaintenanceStatusPage"
		 WHERE "scheduledMaintenanceId" = $1
`

	// IN clause is filled in from list of monitor IDs
	selectStatusPageResources = `
		SELECT "_id", COALESCE("displayName", ''), "statusPageId", "monitorId"
		  FROM "StatusPageResource"
		 WHERE "monitorId" IN (%v)
		   AND "deletedAt" IS NULL
		 LIMIT $1
`

	// IN clause is filled in from list of status page IDs
	selectStatusPagesToNotify = `
		SELECT sp."_id", sp."projectId",
		       COALESCE(sp."name", ''), COALESCE(sp."pageTitle", ''), sp."logoFileId",
		       COALESCE(sp."isPublicStatusPage", FALSE),
		       COALESCE(sp."enableEmailSubscribers", FALSE),
		       COALESCE(sp."enableSmsSubscribers", FALSE),
		       COALESCE(sp."allowSubscribersToChooseResources", FALSE),
		       smtp."_id", smtp."hostname", smtp."port", smtp."username", smtp."password",
		       smtp."fromEmail", smtp."fromName", smtp."secure",
		       sms."_id", sms."twilioAccountSID", sms."twilioAuthToken", sms."twilioPhoneNumber"
		  FROM "StatusPage" sp
		  LEFT JOIN "ProjectSmtpConfig" smtp ON smtp."_id" = sp."smtpConfigId"
		  LEFT JOIN "ProjectCallSMSConfig" sms ON sms."_id" = sp."callSmsConfigId"
		 WHERE sp."_id" IN (%v)
		   AND sp."deletedAt" IS NULL
		   AND (sp."enableEmailSubscribers" = TRUE OR sp."enableSmsSubscribers" = TRUE)
`

	selectStatusPageDomains = `
		SELECT COALESCE("fullDomain", ''), COALESCE("isCnameVerified", FALSE), COALESCE("isSslProvisioned", FALSE)
		  FROM "StatusPageDomain"
		 WHERE "statusPageId" = $1
		   AND "deletedAt" IS NULL
		 ORDER BY "createdAt"
`

	selectSubscribersByStatusPage = `
		SELECT "_id", "statusPageId", COALESCE("subscriberEmail", ''), COALESCE("subscriberPhone", ''),
		       COALESCE("isUnsubscribed", FALSE), COALESCE("isSubscribedToAllResources", FALSE)
		  FROM "StatusPageSubscriber"
		 WHERE "statusPageId" = $1
		   AND "deletedAt" IS NULL
`

	// IN clause is filled in from list of subscriber IDs
	selectSubscriberResources = `
		SELECT "statusPageSubscriberId", "statusPageResourceId"
		  FROM "StatusPageSubscriberStatusPageResource"
		 WHERE "statusPageSubscriberId" IN (%v)
`
)

// inClauseFromIDs is a helper function to construct `in` clause for SQL
// statement from a given slice of object IDs. If the slice is empty, an
// empty string will be returned, making the in clause fail.
func inClauseFromIDs(ids []types.ObjectID) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = id.String()
	}
	return inClauseFromStringSlice(items)
}

// inClauseFromStringSlice is a helper function to construct `in` clause for SQL
// statement from a given slice of string items. If the slice is empty, an
// empty string will be returned, making the in clause fail.
func inClauseFromStringSlice(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return "'" + strings.Join(slice, `','`) + `'`
}

// NewStorage function creates and initializes a new instance of Storage interface
func NewStorage(configuration *conf.StorageConfiguration) (*DBStorage, error) {
	driverType, driverName, dataSource, err := initAndGetDriver(configuration)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("driver", driverName).
		Str("host", configuration.PGHost).
		Str("database", configuration.PGDBName).
		Msg("Making connection to data storage")

	connection, err := sql.Open(driverName, dataSource)
	if err != nil {
		log.Error().Err(err).Msg("Can not connect to data storage")
		return nil, err
	}

	storage := NewFromConnection(connection, driverType)
	if configuration.LimitMax > 0 {
		storage.limitMax = configuration.LimitMax
	}
	if configuration.LimitPerProject > 0 {
		storage.limitPerProject = configuration.LimitPerProject
	}
	storage.logSQLQueries = configuration.LogSQLQueries
	return storage, nil
}

// NewFromConnection function creates and initializes a new instance of
// Storage interface from prepared connection
func NewFromConnection(connection *sql.DB, dbDriverType types.DBDriver) *DBStorage {
	return &DBStorage{
		connection:      connection,
		dbDriverType:    dbDriverType,
		limitMax:        DefaultLimitMax,
		limitPerProject: DefaultLimitPerProject,
	}
}

// initAndGetDriver checks if configured driver is supported and returns
// driver type, driver name, dataSource and error
func initAndGetDriver(configuration *conf.StorageConfiguration) (driverType types.DBDriver, driverName, dataSource string, err error) {
	driverName = configuration.Driver

	switch driverName {
	case "sqlite3":
		driverType = types.DBDriverSQLite3
		dataSource = configuration.SQLiteDataSource
	case "postgres":
		driverType = types.DBDriverPostgres
		dataSource = fmt.Sprintf(
			"postgresql://%v:%v@%v:%v/%v?%v",
			configuration.PGUsername,
			configuration.PGPassword,
			configuration.PGHost,
			configuration.PGPort,
			configuration.PGDBName,
			configuration.PGParams,
		)
	default:
		err = fmt.Errorf("driver %v is not supported", driverName)
		return
	}

	return
}

// Close method closes the connection to database. Needs to be called at the
// end of application lifecycle.
func (storage *DBStorage) Close() error {
	log.Info().Msg("Closing connection to data storage")
	if storage.connection != nil {
		err := storage.connection.Close()
		if err != nil {
			log.Error().Err(err).Msg("Can not close connection to data storage")
			return err
		}
	}
	return nil
}

func (storage *DBStorage) logQuery(query string, args ...interface{}) {
	if storage.logSQLQueries {
		log.Debug().Str("query", query).Interface("args", args).Msg("SQL query")
	}
}

func closeRows(rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		log.Error().Err(err).Msg(unableToCloseDBRowsHandle)
	}
}

// ReadUnnotifiedNotes method reads public notes whose subscribers should be
// notified, but were not notified yet. Only notes created before now are
// returned and number of notes is limited by LimitMax.
func (storage *DBStorage) ReadUnnotifiedNotes(now time.Time) ([]types.PublicNote, error) {
	var notes = make([]types.PublicNote, 0)

	storage.logQuery(selectUnnotifiedNotes, now, storage.limitMax)
	rows, err := storage.connection.Query(selectUnnotifiedNotes, now, storage.limitMax)
	if err != nil {
		return notes, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var note types.PublicNote

		if err := rows.Scan(&note.ID, &note.Note, &note.ScheduledMaintenanceID); err != nil {
			return notes, err
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

// MarkNoteAsNotified method sets the notified flag for given note. The flag
// is never reset. False is returned when the note has been already marked,
// for example by overlapping run.
func (storage *DBStorage) MarkNoteAsNotified(noteID types.ObjectID) (bool, error) {
	storage.logQuery(markNoteAsNotified, noteID)
	result, err := storage.connection.Exec(markNoteAsNotified, noteID)
	if err != nil {
		log.Error().Err(err).Str(NoteIDMessage, noteID.String()).Msg("Unable to mark note as notified")
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// ReadScheduledMaintenance method reads scheduled maintenance event together
// with IDs of its monitors and status pages. Nil is returned without error
// when the event does not exist.
func (storage *DBStorage) ReadScheduledMaintenance(eventID types.ObjectID) (*types.ScheduledMaintenance, error) {
	var (
		event    types.ScheduledMaintenance
		startsAt sql.NullTime
	)

	storage.logQuery(selectScheduledMaintenance, eventID)
	err := storage.connection.QueryRow(selectScheduledMaintenance, eventID).Scan(
		&event.ID, &event.ProjectID, &event.Title, &event.Description, &startsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if startsAt.Valid {
		event.StartsAt = types.Timestamp(startsAt.Time)
	}

	event.MonitorIDs, err = storage.readIDs(selectScheduledMaintenanceMonitors, eventID)
	if err != nil {
		return nil, err
	}

	event.StatusPageIDs, err = storage.readIDs(selectScheduledMaintenanceStatusPages, eventID)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

// readIDs method reads one column of IDs returned by given query
func (storage *DBStorage) readIDs(query string, args ...interface{}) ([]types.ObjectID, error) {
	var ids = make([]types.ObjectID, 0)

	storage.logQuery(query, args...)
	rows, err := storage.connection.Query(query, args...)
	if err != nil {
		return ids, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var id uuid.NullUUID
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		if id.Valid {
			ids = append(ids, id.UUID)
		}
	}

	return ids, rows.Err()
}

// ReadStatusPageResources method reads all status page resources that
// represent given monitors. Empty list of monitors results in empty list of
// resources without touching the database.
func (storage *DBStorage) ReadStatusPageResources(monitorIDs []types.ObjectID) ([]types.StatusPageResource, error) {
	var resources = make([]types.StatusPageResource, 0)

	if len(monitorIDs) == 0 {
		return resources, nil
	}

	query := fmt.Sprintf(selectStatusPageResources, inClauseFromIDs(monitorIDs))
	storage.logQuery(query, storage.limitPerProject)
	rows, err := storage.connection.Query(query, storage.limitPerProject)
	if err != nil {
		return resources, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var resource types.StatusPageResource
		if err := rows.Scan(&resource.ID, &resource.DisplayName, &resource.StatusPageID, &resource.MonitorID); err != nil {
			return resources, err
		}
		resources = append(resources, resource)
	}

	return resources, rows.Err()
}

// ReadStatusPagesToNotify method reads all status pages from given list that
// have e-mail or SMS subscribers enabled. Each page is hydrated with its own
// SMTP and Twilio configuration and with its custom domains.
func (storage *DBStorage) ReadStatusPagesToNotify(statusPageIDs []types.ObjectID) ([]types.StatusPage, error) {
	var statusPages = make([]types.StatusPage, 0)

	if len(statusPageIDs) == 0 {
		return statusPages, nil
	}

	query := fmt.Sprintf(selectStatusPagesToNotify, inClauseFromIDs(statusPageIDs))
	storage.logQuery(query)
	rows, err := storage.connection.Query(query)
	if err != nil {
		return statusPages, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var (
			statusPage types.StatusPage

			smtpID        uuid.NullUUID
			smtpHost      sql.NullString
			smtpPort      sql.NullInt64
			smtpUsername  sql.NullString
			smtpPassword  sql.NullString
			smtpFromEmail sql.NullString
			smtpFromName  sql.NullString
			smtpSecure    sql.NullBool

			smsID          uuid.NullUUID
			smsAccountSID  sql.NullString
			smsAuthToken   sql.NullString
			smsPhoneNumber sql.NullString
		)

		err := rows.Scan(
			&statusPage.ID, &statusPage.ProjectID,
			&statusPage.Name, &statusPage.PageTitle, &statusPage.LogoFileID,
			&statusPage.IsPublicStatusPage,
			&statusPage.EnableEmailSubscribers,
			&statusPage.EnableSMSSubscribers,
			&statusPage.AllowSubscribersToChooseResources,
			&smtpID, &smtpHost, &smtpPort, &smtpUsername, &smtpPassword,
			&smtpFromEmail, &smtpFromName, &smtpSecure,
			&smsID, &smsAccountSID, &smsAuthToken, &smsPhoneNumber,
		)
		if err != nil {
			return statusPages, err
		}

		if smtpID.Valid {
			statusPage.SMTPConfig = &types.SMTPConfig{
				Host:      smtpHost.String,
				Port:      int(smtpPort.Int64),
				Username:  smtpUsername.String,
				Password:  smtpPassword.String,
				FromEmail: smtpFromEmail.String,
				FromName:  smtpFromName.String,
				Secure:    smtpSecure.Bool,
			}
		}

		if smsID.Valid {
			statusPage.CallSMSConfig = &types.CallSMSConfig{
				AccountSID:  smsAccountSID.String,
				AuthToken:   smsAuthToken.String,
				PhoneNumber: smsPhoneNumber.String,
			}
		}

		statusPages = append(statusPages, statusPage)
	}

	if err := rows.Err(); err != nil {
		return statusPages, err
	}

	for i := range statusPages {
		statusPages[i].Domains, err = storage.ReadStatusPageDomains(statusPages[i].ID)
		if err != nil {
			return statusPages, err
		}
	}

	return statusPages, nil
}

// ReadStatusPageDomains method reads custom domains attached to given status
// page
func (storage *DBStorage) ReadStatusPageDomains(statusPageID types.ObjectID) ([]types.StatusPageDomain, error) {
	var domains = make([]types.StatusPageDomain, 0)

	storage.logQuery(selectStatusPageDomains, statusPageID)
	rows, err := storage.connection.Query(selectStatusPageDomains, statusPageID)
	if err != nil {
		return domains, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var domain types.StatusPageDomain
		if err := rows.Scan(&domain.FullDomain, &domain.IsCnameVerified, &domain.IsSslProvisioned); err != nil {
			return domains, err
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// ReadSubscribersByStatusPage method reads all subscribers of given status
// page together with IDs of resources they are subscribed to
func (storage *DBStorage) ReadSubscribersByStatusPage(statusPageID types.ObjectID) ([]types.Subscriber, error) {
	var subscribers = make([]types.Subscriber, 0)

	storage.logQuery(selectSubscribersByStatusPage, statusPageID)
	rows, err := storage.connection.Query(selectSubscribersByStatusPage, statusPageID)
	if err != nil {
		return subscribers, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var subscriber types.Subscriber
		err := rows.Scan(
			&subscriber.ID, &subscriber.StatusPageID,
			&subscriber.Email, &subscriber.Phone,
			&subscriber.IsUnsubscribed, &subscriber.IsSubscribedToAllResources,
		)
		if err != nil {
			return subscribers, err
		}
		subscribers = append(subscribers, subscriber)
	}

	if err := rows.Err(); err != nil {
		return subscribers, err
	}

	if len(subscribers) == 0 {
		return subscribers, nil
	}

	resources, err := storage.readSubscriberResources(subscribers)
	if err != nil {
		return subscribers, err
	}

	for i := range subscribers {
		subscribers[i].ResourceIDs = resources[subscribers[i].ID]
	}

	return subscribers, nil
}

// readSubscriberResources method reads resource subscriptions for all given
// subscribers
func (storage *DBStorage) readSubscriberResources(subscribers []types.Subscriber) (map[types.ObjectID][]types.ObjectID, error) {
	resources := make(map[types.ObjectID][]types.ObjectID, len(subscribers))

	subscriberIDs := make([]types.ObjectID, len(subscribers))
	for i := range subscribers {
		subscriberIDs[i] = subscribers[i].ID
	}

	query := fmt.Sprintf(selectSubscriberResources, inClauseFromIDs(subscriberIDs))
	storage.logQuery(query)
	rows, err := storage.connection.Query(query)
	if err != nil {
		return resources, err
	}

	defer closeRows(rows)

	for rows.Next() {
		var subscriberID, resourceID types.ObjectID
		if err := rows.Scan(&subscriberID, &resourceID); err != nil {
			return resources, err
		}
		resources[subscriberID] = append(resources[subscriberID], resourceID)
	}

	return resources, rows.Err()
}

// PrintPendingNotes method prints all notes that would be taken by the next
// run of the job
func (storage *DBStorage) PrintPendingNotes(now time.Time) error {
	storage.logQuery(displayUnnotifiedNotes, now, storage.limitMax)
	rows, err := storage.connection.Query(displayUnnotifiedNotes, now, storage.limitMax)
	if err != nil {
		return err
	}

	defer closeRows(rows)

	count := 0
	for rows.Next() {
		var (
			noteID    types.ObjectID
			eventID   types.ObjectID
			createdAt time.Time
		)

		if err := rows.Scan(&noteID, &eventID, &createdAt); err != nil {
			return err
		}
		age := now.Sub(createdAt).Round(time.Second)
		log.Info().
			Str(NoteIDMessage, noteID.String()).
			Str(EventIDMessage, eventID.String()).
			Str(CreatedAtMessage, createdAt.Format(time.RFC3339)).
			Str("Age", age.String()).
			Msg("Pending note")
		count++
	}

	if err := rows.Err(); err != nil {
		return err
	}

	log.Info().Int("count", count).Msg("Pending notes")
	return nil
}
