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
	"strings"

	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// ResourcesByStatusPage maps status page ID to resources affected by
// scheduled maintenance event that are shown on that page
type ResourcesByStatusPage map[types.ObjectID][]types.StatusPageResource

// groupResourcesByStatusPage function groups resources by the status page they
// belong to. Resources without status page are skipped.
func groupResourcesByStatusPage(resources []types.StatusPageResource) ResourcesByStatusPage {
	grouped := make(ResourcesByStatusPage)

	for _, resource := range resources {
		if !resource.StatusPageID.Valid {
			continue
		}
		statusPageID := resource.StatusPageID.UUID
		grouped[statusPageID] = append(grouped[statusPageID], resource)
	}

	return grouped
}

// mapAffectedResources function reads resources for all monitors affected by
// given event and groups them by status page
func mapAffectedResources(storage Storage, event *types.ScheduledMaintenance) (ResourcesByStatusPage, error) {
	if len(event.MonitorIDs) == 0 {
		return ResourcesByStatusPage{}, nil
	}

	resources, err := storage.ReadStatusPageResources(event.MonitorIDs)
	if err != nil {
		return nil, err
	}

	return groupResourcesByStatusPage(resources), nil
}

// resourceIDs function returns IDs of given resources
func resourceIDs(resources []types.StatusPageResource) []types.ObjectID {
	ids := make([]types.ObjectID, len(resources))
	for i := range resources {
		ids[i] = resources[i].ID
	}
	return ids
}

// resourceNames function returns comma separated list of display names of
// given resources
func resourceNames(resources []types.StatusPageResource) string {
	names := make([]string, len(resources))
	for i := range resources {
		names[i] = resources[i].DisplayName
	}
	return strings.Join(names, ", ")
}
