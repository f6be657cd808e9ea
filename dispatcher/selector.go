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
	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// ShouldSendNotification function decides whether given subscriber is
// interested in a notification about given affected resources. The function
// has no side effects.
//
// Unsubscribed subscribers are never notified. When the status page does not
// let subscribers choose resources, or when the subscriber is subscribed to
// all resources, the subscriber is always notified. Otherwise at least one of
// the affected resources must be among resources the subscriber is
// subscribed to.
func ShouldSendNotification(subscriber *types.Subscriber, affectedResources []types.StatusPageResource, statusPage *types.StatusPage) bool {
	if subscriber.IsUnsubscribed {
		return false
	}

	if !statusPage.AllowSubscribersToChooseResources {
		return true
	}

	if subscriber.IsSubscribedToAllResources {
		return true
	}

	subscribed := types.MakeSetOfObjectIDs(subscriber.ResourceIDs)
	for _, id := range resourceIDs(affectedResources) {
		if subscribed.Contains(id) {
			return true
		}
	}

	return false
}

// selectStatusPages function reads status pages that should be notified
// about given event and applies configured allow and block lists
func selectStatusPages(storage Storage, event *types.ScheduledMaintenance, processing *conf.ProcessingConfiguration) ([]types.StatusPage, error) {
	statusPages, err := storage.ReadStatusPagesToNotify(event.StatusPageIDs)
	if err != nil {
		return nil, err
	}

	statusPages, statistic := filterStatusPageList(statusPages, processing)
	log.Debug().
		Str(EventIDMessage, event.ID.String()).
		Int("On input", statistic.Input).
		Int("Allowed", statistic.Allowed).
		Int("Blocked", statistic.Blocked).
		Int("Filtered", statistic.Filtered).
		Msg("Filter status page list")

	return statusPages, nil
}

// selectSubscribers function returns subscribers of given status page who
// should be notified about change of given resources
func selectSubscribers(subscribers []types.Subscriber, affectedResources []types.StatusPageResource, statusPage *types.StatusPage) []types.Subscriber {
	selected := make([]types.Subscriber, 0, len(subscribers))

	for i := range subscribers {
		if ShouldSendNotification(&subscribers[i], affectedResources, statusPage) {
			selected = append(selected, subscribers[i])
		}
	}

	return selected
}
