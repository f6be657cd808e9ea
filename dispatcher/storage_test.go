/*
Copyright © 2021, 2022, 2024 Red Hat, Inc.

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
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RedHatInsights/insights-operator-utils/tests/helpers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/dispatcher"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

var (
	noteID1       = uuid.MustParse("00000000-0000-0000-0000-00000000a001")
	noteID2       = uuid.MustParse("00000000-0000-0000-0000-00000000a002")
	eventID       = uuid.MustParse("00000000-0000-0000-0000-00000000b001")
	projectID     = uuid.MustParse("00000000-0000-0000-0000-00000000c001")
	monitorID1    = uuid.MustParse("00000000-0000-0000-0000-00000000d001")
	monitorID2    = uuid.MustParse("00000000-0000-0000-0000-00000000d002")
	statusPageID1 = uuid.MustParse("00000000-0000-0000-0000-00000000e001")
	statusPageID2 = uuid.MustParse("00000000-0000-0000-0000-00000000e002")
	resourceID1   = uuid.MustParse("00000000-0000-0000-0000-00000000f001")
	resourceID2   = uuid.MustParse("00000000-0000-0000-0000-00000000f002")
	subscriberID1 = uuid.MustParse("00000000-0000-0000-0000-000000001001")
	subscriberID2 = uuid.MustParse("00000000-0000-0000-0000-000000001002")
	subscriberID3 = uuid.MustParse("00000000-0000-0000-0000-000000001003")
	smtpConfigID  = uuid.MustParse("00000000-0000-0000-0000-000000002001")
	logoFileID    = uuid.MustParse("00000000-0000-0000-0000-000000003001")

	errDatabase = errors.New("database is not available")

	startsAt = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
)

// mustCreateMockConnection function tries to create a new mock connection and
// checks if the operation was finished without problems.
func mustCreateMockConnection(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	connection, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	return connection, mock
}

// checkAllExpectations function checks if all database-related operations have
// been really met.
func checkAllExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	err := mock.ExpectationsWereMet()
	if err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func newMockStorage(t *testing.T) (*dispatcher.DBStorage, sqlmock.Sqlmock, *sql.DB) {
	connection, mock := mustCreateMockConnection(t)
	return dispatcher.NewFromConnection(connection, types.DBDriverPostgres), mock, connection
}

// TestNewStorageUnsupportedDriver checks that unknown driver is refused
func TestNewStorageUnsupportedDriver(t *testing.T) {
	_, err := dispatcher.NewStorage(&conf.StorageConfiguration{Driver: "oracle"})
	assert.EqualError(t, err, "driver oracle is not supported")
}

// TestNewStorageSQLite checks construction of SQLite backed storage
func TestNewStorageSQLite(t *testing.T) {
	storage, err := dispatcher.NewStorage(&conf.StorageConfiguration{
		Driver:           "sqlite3",
		SQLiteDataSource: ":memory:",
		LimitMax:         10,
	})
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())
}

// TestNewStoragePostgres checks construction of PostgreSQL backed storage;
// connection is opened lazily so no server is needed
func TestNewStoragePostgres(t *testing.T) {
	storage, err := dispatcher.NewStorage(&conf.StorageConfiguration{
		Driver:     "postgres",
		PGUsername: "user",
		PGPassword: "password",
		PGHost:     "localhost",
		PGPort:     5432,
		PGDBName:   "oneuptime",
		PGParams:   "sslmode=disable",
	})
	helpers.FailOnError(t, err)
	helpers.FailOnError(t, storage.Close())
}

// TestCloseWithError checks that error on close is propagated
func TestCloseWithError(t *testing.T) {
	storage, mock, _ := newMockStorage(t)
	mock.ExpectClose().WillReturnError(errDatabase)

	assert.Error(t, storage.Close())
	checkAllExpectations(t, mock)
}

// TestReadUnnotifiedNotes checks reading notes waiting for dispatch
func TestReadUnnotifiedNotes(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"_id", "note", "scheduledMaintenanceId"}).
		AddRow(noteID1.String(), "first note", eventID.String()).
		AddRow(noteID2.String(), "", eventID.String())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenancePublicNote"`)).
		WithArgs(now, dispatcher.DefaultLimitMax).
		WillReturnRows(rows)

	notes, err := storage.ReadUnnotifiedNotes(now)
	helpers.FailOnError(t, err)

	assert.Equal(t, []types.PublicNote{
		{ID: noteID1, Note: "first note", ScheduledMaintenanceID: eventID},
		{ID: noteID2, Note: "", ScheduledMaintenanceID: eventID},
	}, notes)
	checkAllExpectations(t, mock)
}

// TestReadUnnotifiedNotesBacklogLimit checks that whole backlog is taken by
// one run, limited only by the system ceiling
func TestReadUnnotifiedNotesBacklogLimit(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	assert.Equal(t, conf.DefaultLimitMax, dispatcher.DefaultLimitMax)
	assert.GreaterOrEqual(t, dispatcher.DefaultLimitMax, 99999999)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenancePublicNote"`)).
		WithArgs(now, 99999999).
		WillReturnRows(sqlmock.NewRows([]string{"_id", "note", "scheduledMaintenanceId"}))

	notes, err := storage.ReadUnnotifiedNotes(now)
	helpers.FailOnError(t, err)
	assert.Empty(t, notes)
	checkAllExpectations(t, mock)
}

// TestReadUnnotifiedNotesOnError checks that query error is propagated
func TestReadUnnotifiedNotesOnError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenancePublicNote"`)).
		WillReturnError(errDatabase)

	notes, err := storage.ReadUnnotifiedNotes(time.Now())
	assert.ErrorIs(t, err, errDatabase)
	assert.Empty(t, notes)
	checkAllExpectations(t, mock)
}

// TestReadUnnotifiedNotesScanError checks that malformed row is reported
func TestReadUnnotifiedNotesScanError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	rows := sqlmock.NewRows([]string{"_id", "note", "scheduledMaintenanceId"}).
		AddRow("this is not UUID", "note", eventID.String())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenancePublicNote"`)).
		WillReturnRows(rows)

	_, err := storage.ReadUnnotifiedNotes(time.Now())
	assert.Error(t, err)
	checkAllExpectations(t, mock)
}

// TestMarkNoteAsNotified checks that note is claimed when the flag was
// updated
func TestMarkNoteAsNotified(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ScheduledMaintenancePublicNote"`)).
		WithArgs(noteID1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := storage.MarkNoteAsNotified(noteID1)
	helpers.FailOnError(t, err)
	assert.True(t, claimed)
	checkAllExpectations(t, mock)
}

// TestMarkNoteAsNotifiedAlreadyMarked checks that note marked by other run
// is not claimed again
func TestMarkNoteAsNotifiedAlreadyMarked(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ScheduledMaintenancePublicNote"`)).
		WithArgs(noteID1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := storage.MarkNoteAsNotified(noteID1)
	helpers.FailOnError(t, err)
	assert.False(t, claimed)
	checkAllExpectations(t, mock)
}

// TestMarkNoteAsNotifiedOnError checks that update error is propagated
func TestMarkNoteAsNotifiedOnError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ScheduledMaintenancePublicNote"`)).
		WillReturnError(errDatabase)

	claimed, err := storage.MarkNoteAsNotified(noteID1)
	assert.ErrorIs(t, err, errDatabase)
	assert.False(t, claimed)
	checkAllExpectations(t, mock)
}

// TestReadScheduledMaintenance checks that event is hydrated with monitors
// and status pages
func TestReadScheduledMaintenance(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenance"`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"_id", "projectId", "title", "description", "startsAt"}).
			AddRow(eventID.String(), projectID.String(), "Upgrade", "Database upgrade", startsAt))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenanceMonitor"`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"monitorId"}).
			AddRow(monitorID1.String()).
			AddRow(nil).
			AddRow(monitorID2.String()))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenanceStatusPage"`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"statusPageId"}).
			AddRow(statusPageID1.String()))

	event, err := storage.ReadScheduledMaintenance(eventID)
	helpers.FailOnError(t, err)

	assert.Equal(t, &types.ScheduledMaintenance{
		ID:            eventID,
		ProjectID:     projectID,
		Title:         "Upgrade",
		Description:   "Database upgrade",
		StartsAt:      types.Timestamp(startsAt),
		MonitorIDs:    []types.ObjectID{monitorID1, monitorID2},
		StatusPageIDs: []types.ObjectID{statusPageID1},
	}, event)
	checkAllExpectations(t, mock)
}

// TestReadScheduledMaintenanceNotFound checks that deleted event is reported
// as nil without error
func TestReadScheduledMaintenanceNotFound(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenance"`)).
		WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"_id", "projectId", "title", "description", "startsAt"}))

	event, err := storage.ReadScheduledMaintenance(eventID)
	helpers.FailOnError(t, err)
	assert.Nil(t, event)
	checkAllExpectations(t, mock)
}

// TestReadScheduledMaintenanceOnError checks that query error is propagated
func TestReadScheduledMaintenanceOnError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "ScheduledMaintenance"`)).
		WillReturnError(errDatabase)

	event, err := storage.ReadScheduledMaintenance(eventID)
	assert.ErrorIs(t, err, errDatabase)
	assert.Nil(t, event)
	checkAllExpectations(t, mock)
}

// TestReadStatusPageResourcesNoMonitors checks that no query is made for
// empty list of monitors
func TestReadStatusPageResourcesNoMonitors(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	resources, err := storage.ReadStatusPageResources(nil)
	helpers.FailOnError(t, err)
	assert.Empty(t, resources)
	checkAllExpectations(t, mock)
}

// TestReadStatusPageResources checks reading resources for given monitors
func TestReadStatusPageResources(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	inClause := "'" + monitorID1.String() + "','" + monitorID2.String() + "'"
	mock.ExpectQuery(regexp.QuoteMeta(`"monitorId" IN (` + inClause + `)`)).
		WithArgs(dispatcher.DefaultLimitPerProject).
		WillReturnRows(sqlmock.NewRows([]string{"_id", "displayName", "statusPageId", "monitorId"}).
			AddRow(resourceID1.String(), "API", statusPageID1.String(), monitorID1.String()).
			AddRow(resourceID2.String(), "Website", nil, monitorID2.String()))

	resources, err := storage.ReadStatusPageResources([]types.ObjectID{monitorID1, monitorID2})
	helpers.FailOnError(t, err)

	assert.Equal(t, []types.StatusPageResource{
		{
			ID:           resourceID1,
			DisplayName:  "API",
			StatusPageID: uuid.NullUUID{UUID: statusPageID1, Valid: true},
			MonitorID:    monitorID1,
		},
		{
			ID:          resourceID2,
			DisplayName: "Website",
			MonitorID:   monitorID2,
		},
	}, resources)
	checkAllExpectations(t, mock)
}

var statusPageColumns = []string{
	"_id", "projectId", "name", "pageTitle", "logoFileId",
	"isPublicStatusPage", "enableEmailSubscribers", "enableSmsSubscribers",
	"allowSubscribersToChooseResources",
	"smtp_id", "hostname", "port", "username", "password", "fromEmail", "fromName", "secure",
	"sms_id", "twilioAccountSID", "twilioAuthToken", "twilioPhoneNumber",
}

// TestReadStatusPagesToNotify checks that status pages are hydrated with
// channel overrides and domains
func TestReadStatusPagesToNotify(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPage" sp`)).
		WillReturnRows(sqlmock.NewRows(statusPageColumns).
			AddRow(statusPageID1.String(), projectID.String(), "Acme", "Acme Status", logoFileID.String(),
				true, true, false, true,
				smtpConfigID.String(), "smtp.acme.com", int64(587), "user", "secret", "status@acme.com", "Acme", true,
				nil, nil, nil, nil).
			AddRow(statusPageID2.String(), projectID.String(), "Internal", "", nil,
				false, true, true, false,
				nil, nil, nil, nil, nil, nil, nil, nil,
				nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageDomain"`)).
		WithArgs(statusPageID1).
		WillReturnRows(sqlmock.NewRows([]string{"fullDomain", "isCnameVerified", "isSslProvisioned"}).
			AddRow("status.acme.com", true, true))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageDomain"`)).
		WithArgs(statusPageID2).
		WillReturnRows(sqlmock.NewRows([]string{"fullDomain", "isCnameVerified", "isSslProvisioned"}))

	statusPages, err := storage.ReadStatusPagesToNotify([]types.ObjectID{statusPageID1, statusPageID2})
	helpers.FailOnError(t, err)
	assert.Len(t, statusPages, 2)

	first := statusPages[0]
	assert.Equal(t, statusPageID1, first.ID)
	assert.Equal(t, "Acme Status", first.PageTitle)
	assert.Equal(t, uuid.NullUUID{UUID: logoFileID, Valid: true}, first.LogoFileID)
	assert.True(t, first.IsPublicStatusPage)
	assert.True(t, first.EnableEmailSubscribers)
	assert.False(t, first.EnableSMSSubscribers)
	assert.True(t, first.AllowSubscribersToChooseResources)
	assert.Equal(t, &types.SMTPConfig{
		Host:      "smtp.acme.com",
		Port:      587,
		Username:  "user",
		Password:  "secret",
		FromEmail: "status@acme.com",
		FromName:  "Acme",
		Secure:    true,
	}, first.SMTPConfig)
	assert.Nil(t, first.CallSMSConfig)
	assert.Equal(t, []types.StatusPageDomain{
		{FullDomain: "status.acme.com", IsCnameVerified: true, IsSslProvisioned: true},
	}, first.Domains)

	second := statusPages[1]
	assert.Equal(t, "Internal", second.Name)
	assert.False(t, second.LogoFileID.Valid)
	assert.Nil(t, second.SMTPConfig)
	assert.Nil(t, second.CallSMSConfig)
	assert.Empty(t, second.Domains)

	checkAllExpectations(t, mock)
}

// TestReadStatusPagesToNotifyNoIDs checks that no query is made for empty
// list of status pages
func TestReadStatusPagesToNotifyNoIDs(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	statusPages, err := storage.ReadStatusPagesToNotify([]types.ObjectID{})
	helpers.FailOnError(t, err)
	assert.Empty(t, statusPages)
	checkAllExpectations(t, mock)
}

// TestReadStatusPagesToNotifyDomainError checks that domain read error is
// propagated
func TestReadStatusPagesToNotifyDomainError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPage" sp`)).
		WillReturnRows(sqlmock.NewRows(statusPageColumns).
			AddRow(statusPageID1.String(), projectID.String(), "Acme", "", nil,
				true, true, true, false,
				nil, nil, nil, nil, nil, nil, nil, nil,
				nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageDomain"`)).
		WillReturnError(errDatabase)

	_, err := storage.ReadStatusPagesToNotify([]types.ObjectID{statusPageID1})
	assert.ErrorIs(t, err, errDatabase)
	checkAllExpectations(t, mock)
}

// TestReadSubscribersByStatusPage checks that subscribers are hydrated with
// their resource subscriptions
func TestReadSubscribersByStatusPage(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageSubscriber"`)).
		WithArgs(statusPageID1).
		WillReturnRows(sqlmock.NewRows([]string{
			"_id", "statusPageId", "subscriberEmail", "subscriberPhone", "isUnsubscribed", "isSubscribedToAllResources",
		}).
			AddRow(subscriberID1.String(), statusPageID1.String(), "one@example.com", "", false, true).
			AddRow(subscriberID2.String(), statusPageID1.String(), "", "+15550102", false, false))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageSubscriberStatusPageResource"`)).
		WillReturnRows(sqlmock.NewRows([]string{"statusPageSubscriberId", "statusPageResourceId"}).
			AddRow(subscriberID2.String(), resourceID1.String()).
			AddRow(subscriberID2.String(), resourceID2.String()))

	subscribers, err := storage.ReadSubscribersByStatusPage(statusPageID1)
	helpers.FailOnError(t, err)

	assert.Equal(t, []types.Subscriber{
		{
			ID:                         subscriberID1,
			StatusPageID:               statusPageID1,
			Email:                      "one@example.com",
			IsSubscribedToAllResources: true,
		},
		{
			ID:           subscriberID2,
			StatusPageID: statusPageID1,
			Phone:        "+15550102",
			ResourceIDs:  []types.ObjectID{resourceID1, resourceID2},
		},
	}, subscribers)
	checkAllExpectations(t, mock)
}

// TestReadSubscribersByStatusPageNoSubscribers checks that subscriptions
// are not read for page without subscribers
func TestReadSubscribersByStatusPageNoSubscribers(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageSubscriber"`)).
		WithArgs(statusPageID1).
		WillReturnRows(sqlmock.NewRows([]string{
			"_id", "statusPageId", "subscriberEmail", "subscriberPhone", "isUnsubscribed", "isSubscribedToAllResources",
		}))

	subscribers, err := storage.ReadSubscribersByStatusPage(statusPageID1)
	helpers.FailOnError(t, err)
	assert.Empty(t, subscribers)
	checkAllExpectations(t, mock)
}

// TestReadSubscribersByStatusPageOnError checks that query error is
// propagated
func TestReadSubscribersByStatusPageOnError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "StatusPageSubscriber"`)).
		WillReturnError(errDatabase)

	_, err := storage.ReadSubscribersByStatusPage(statusPageID1)
	assert.ErrorIs(t, err, errDatabase)
	checkAllExpectations(t, mock)
}

// TestPrintPendingNotes checks listing of notes waiting for dispatch
func TestPrintPendingNotes(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "_id", "scheduledMaintenanceId", "createdAt"`)).
		WithArgs(now, dispatcher.DefaultLimitMax).
		WillReturnRows(sqlmock.NewRows([]string{"_id", "scheduledMaintenanceId", "createdAt"}).
			AddRow(noteID1.String(), eventID.String(), now.Add(-time.Hour)))

	helpers.FailOnError(t, storage.PrintPendingNotes(now))
	checkAllExpectations(t, mock)
}

// TestPrintPendingNotesOnError checks that query error is propagated
func TestPrintPendingNotesOnError(t *testing.T) {
	storage, mock, connection := newMockStorage(t)
	defer func() { _ = connection.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "_id", "scheduledMaintenanceId", "createdAt"`)).
		WillReturnError(errDatabase)

	assert.ErrorIs(t, storage.PrintPendingNotes(time.Now()), errDatabase)
	checkAllExpectations(t, mock)
}
