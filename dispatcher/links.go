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
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// Routes on the platform host
const (
	statusPageRoute         = "/status-page/"
	fileImageRoute          = "/file/image/"
	updateSubscriptionRoute = "/update-subscription/"
	unsubscribeTokenParam   = "token"
)

// LinkBuilder constructs URLs that are embedded into notifications
type LinkBuilder struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLinkBuilder constructs LinkBuilder for configured host and protocol
func NewLinkBuilder(configuration *conf.NotificationsConfiguration) *LinkBuilder {
	protocol := strings.TrimSuffix(configuration.HTTPProtocol, "://")
	if protocol == "" {
		protocol = "https"
	}

	builder := &LinkBuilder{
		baseURL: protocol + "://" + strings.TrimSuffix(configuration.Host, "/"),
		now:     time.Now,
	}
	if configuration.UnsubscribeSecret != "" {
		builder.secret = []byte(configuration.UnsubscribeSecret)
	}
	return builder
}

// StatusPageURL method returns public URL of given status page. First custom
// domain that is verified and has certificate provisioned is preferred,
// otherwise the page is served from platform host.
func (builder *LinkBuilder) StatusPageURL(statusPage *types.StatusPage) string {
	for _, domain := range statusPage.Domains {
		if domain.FullDomain != "" && domain.IsCnameVerified && domain.IsSslProvisioned {
			return "https://" + domain.FullDomain
		}
	}
	return builder.baseURL + statusPageRoute + statusPage.ID.String()
}

// LogoURL method returns URL of status page logo or empty string when the
// page has no logo
func (builder *LinkBuilder) LogoURL(statusPage *types.StatusPage) string {
	if !statusPage.LogoFileID.Valid {
		return ""
	}
	return builder.baseURL + fileImageRoute + statusPage.LogoFileID.UUID.String()
}

// UnsubscribeURL method returns link to page where subscriber can update
// notification preferences. When signing secret is configured, the link
// carries HS256 token bound to subscriber and status page.
func (builder *LinkBuilder) UnsubscribeURL(statusPageURL string, statusPage *types.StatusPage, subscriber *types.Subscriber) (string, error) {
	link := strings.TrimSuffix(statusPageURL, "/") + updateSubscriptionRoute + subscriber.ID.String()

	if builder.secret == nil {
		return link, nil
	}

	token, err := builder.unsubscribeToken(statusPage, subscriber)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set(unsubscribeTokenParam, token)
	return link + "?" + query.Encode(), nil
}

func (builder *LinkBuilder) unsubscribeToken(statusPage *types.StatusPage, subscriber *types.Subscriber) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  subscriber.ID.String(),
		Audience: jwt.ClaimStrings{statusPage.ID.String()},
		IssuedAt: jwt.NewNumericDate(builder.now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(builder.secret)
}
