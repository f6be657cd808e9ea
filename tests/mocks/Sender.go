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
	mock "github.com/stretchr/testify/mock"

	sender "github.com/RedHatInsights/maintenance-notification-service/sender"
	types "github.com/RedHatInsights/maintenance-notification-service/types"
)

// MailSender is a mock type for the MailSender type
type MailSender struct {
	mock.Mock
}

// SendMail provides a mock function with given fields: message, options
func (_m *MailSender) SendMail(message *types.EmailMessage, options sender.MailOptions) error {
	ret := _m.Called(message, options)

	var r0 error
	if rf, ok := ret.Get(0).(func(*types.EmailMessage, sender.MailOptions) error); ok {
		r0 = rf(message, options)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SMSSender is a mock type for the SMSSender type
type SMSSender struct {
	mock.Mock
}

// SendSMS provides a mock function with given fields: sms, options
func (_m *SMSSender) SendSMS(sms *types.SMS, options sender.SMSOptions) error {
	ret := _m.Called(sms, options)

	var r0 error
	if rf, ok := ret.Get(0).(func(*types.SMS, sender.SMSOptions) error); ok {
		r0 = rf(sms, options)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}
