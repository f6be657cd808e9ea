/*
Copyright © 2021, 2024 Red Hat, Inc.

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

package mocks

import (
	"time"

	mock "github.com/stretchr/testify/mock"

	types "github.com/RedHatInsights/maintenance-notification-service/types"
)

// Storage is a mock type for the Storage type
type Storage struct {
	mock.Mock
}

// Close provides a mock function with given fields:
func (_m *Storage) Close() error {
	ret := _m.Called()

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// ReadUnnotifiedNotes provides a mock function with given fields: now
func (_m *Storage) ReadUnnotifiedNotes(now time.Time) ([]types.PublicNote, error) {
	ret := _m.Called(now)

	var r0 []types.PublicNote
	if rf, ok := ret.Get(0).(func(time.Time) []types.PublicNote); ok {
		r0 = rf(now)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.PublicNote)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(time.Time) error); ok {
		r1 = rf(now)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// MarkNoteAsNotified provides a mock function with given fields: noteID
func (_m *Storage) MarkNoteAsNotified(noteID types.ObjectID) (bool, error) {
	ret := _m.Called(noteID)

	var r0 bool
	if rf, ok := ret.Get(0).(func(types.ObjectID) bool); ok {
		r0 = rf(noteID)
	} else {
		r0 = ret.Bool(0)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(types.ObjectID) error); ok {
		r1 = rf(noteID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadScheduledMaintenance provides a mock function with given fields: eventID
func (_m *Storage) ReadScheduledMaintenance(eventID types.ObjectID) (*types.ScheduledMaintenance, error) {
	ret := _m.Called(eventID)

	var r0 *types.ScheduledMaintenance
	if rf, ok := ret.Get(0).(func(types.ObjectID) *types.ScheduledMaintenance); ok {
		r0 = rf(eventID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*types.ScheduledMaintenance)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(types.ObjectID) error); ok {
		r1 = rf(eventID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadStatusPageResources provides a mock function with given fields: monitorIDs
func (_m *Storage) ReadStatusPageResources(monitorIDs []types.ObjectID) ([]types.StatusPageResource, error) {
	ret := _m.Called(monitorIDs)

	var r0 []types.StatusPageResource
	if rf, ok := ret.Get(0).(func([]types.ObjectID) []types.StatusPageResource); ok {
		r0 = rf(monitorIDs)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.StatusPageResource)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func([]types.ObjectID) error); ok {
		r1 = rf(monitorIDs)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadStatusPagesToNotify provides a mock function with given fields: statusPageIDs
func (_m *Storage) ReadStatusPagesToNotify(statusPageIDs []types.ObjectID) ([]types.StatusPage, error) {
	ret := _m.Called(statusPageIDs)

	var r0 []types.StatusPage
	if rf, ok := ret.Get(0).(func([]types.ObjectID) []types.StatusPage); ok {
		r0 = rf(statusPageIDs)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.StatusPage)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func([]types.ObjectID) error); ok {
		r1 = rf(statusPageIDs)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ReadSubscribersByStatusPage provides a mock function with given fields: statusPageID
func (_m *Storage) ReadSubscribersByStatusPage(statusPageID types.ObjectID) ([]types.Subscriber, error) {
	ret := _m.Called(statusPageID)

	var r0 []types.Subscriber
	if rf, ok := ret.Get(0).(func(types.ObjectID) []types.Subscriber); ok {
		r0 = rf(statusPageID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]types.Subscriber)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(types.ObjectID) error); ok {
		r1 = rf(statusPageID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PrintPendingNotes provides a mock function with given fields: now
func (_m *Storage) PrintPendingNotes(now time.Time) error {
	ret := _m.Called(now)

	var r0 error
	if rf, ok := ret.Get(0).(func(time.Time) error); ok {
		r0 = rf(now)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
