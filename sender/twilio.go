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
	"net/http"
	"net/url"
	"strings"
	"time"

	httputils "github.com/RedHatInsights/insights-operator-utils/http"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Twilio API defaults
const (
	DefaultTwilioURL     = "https://api.twilio.com"
	DefaultTwilioTimeout = 10 * time.Second
)

// ErrNoTwilioAccount is returned when neither global nor project Twilio
// account is configured
var ErrNoTwilioAccount = errors.New("no Twilio account configured")

// TwilioSender delivers SMS through Twilio REST API
type TwilioSender struct {
	baseURL *url.URL
	account *types.CallSMSConfig
	timeout time.Duration
}

// NewTwilioSender constructs sender for globally configured Twilio account.
// The sender also serves project accounts passed in SMSOptions. When URL is
// configured, API requests are sent there instead of Twilio.
func NewTwilioSender(configuration *conf.SMSConfiguration) *TwilioSender {
	var baseURL *url.URL
	if configuration.URL != "" && strings.TrimSuffix(configuration.URL, "/") != DefaultTwilioURL {
		parsed, err := url.Parse(httputils.SetHTTPPrefix(strings.TrimSuffix(configuration.URL, "/")))
		if err != nil {
			log.Error().Err(err).Str("url", configuration.URL).Msg("Invalid Twilio URL, using default one")
		} else {
			baseURL = parsed
		}
	}

	timeout := configuration.Timeout
	if timeout <= 0 {
		timeout = DefaultTwilioTimeout
	}

	var account *types.CallSMSConfig
	if configuration.TwilioAccountSID != "" {
		account = &types.CallSMSConfig{
			AccountSID:  configuration.TwilioAccountSID,
			AuthToken:   configuration.TwilioAuthToken,
			PhoneNumber: configuration.TwilioFromNumber,
		}
	}

	return &TwilioSender{
		baseURL: baseURL,
		account: account,
		timeout: timeout,
	}
}

// SendSMS sends SMS through project Twilio account, or through global one
// when the project has none
func (sender *TwilioSender) SendSMS(sms *types.SMS, options SMSOptions) error {
	account := options.TwilioConfig
	if account == nil {
		account = sender.account
	}
	if account == nil {
		return ErrNoTwilioAccount
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(sms.To)
	params.SetFrom(account.PhoneNumber)
	params.SetBody(sms.Message)

	message, err := sender.restClient(account).Api.CreateMessage(params)
	if err != nil {
		log.Error().Err(err).Str("account", account.AccountSID).Msg("Twilio refused SMS")
		return err
	}

	if message.Sid != nil {
		log.Debug().Str("sid", *message.Sid).Msg("SMS sent")
	}
	return nil
}

// restClient method constructs Twilio client authenticated by given account
func (sender *TwilioSender) restClient(account *types.CallSMSConfig) *twilio.RestClient {
	httpClient := &http.Client{Timeout: sender.timeout}
	if sender.baseURL != nil {
		httpClient.Transport = &baseURLTransport{base: sender.baseURL, next: http.DefaultTransport}
	}

	apiClient := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(account.AccountSID, account.AuthToken),
		HTTPClient:  httpClient,
	}
	apiClient.SetAccountSid(account.AccountSID)

	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: apiClient})
}

// baseURLTransport redirects requests to configured scheme and host
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

// RoundTrip rewrites request URL and passes the request on
func (transport *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	redirected := req.Clone(req.Context())
	redirected.URL.Scheme = transport.base.Scheme
	redirected.URL.Host = transport.base.Host
	redirected.URL.Path = strings.TrimSuffix(transport.base.Path, "/") + req.URL.Path
	redirected.Host = ""
	return transport.next.RoundTrip(redirected)
}
