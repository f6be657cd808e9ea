/*
Copyright © 2022, 2024 Red Hat, Inc.

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

import (
	"github.com/RedHatInsights/maintenance-notification-service/conf"
	"github.com/RedHatInsights/maintenance-notification-service/types"

	"github.com/RedHatInsights/insights-operator-utils/collections"
)

// StatusPageFilterStatistic is a structure containing elementary statistic
// about status pages being filtered by filterStatusPageList function. It can
// be used for logging and debugging purposes.
type StatusPageFilterStatistic struct {
	Input    int
	Allowed  int
	Blocked  int
	Filtered int
}

// filterStatusPageList function filters status pages according to given
// allow list and block list
func filterStatusPageList(statusPages []types.StatusPage, configuration *conf.ProcessingConfiguration) ([]types.StatusPage, StatusPageFilterStatistic) {
	stat := StatusPageFilterStatistic{}

	// don't process/filter status pages if filtering is completely
	// disabled (this includes both allow list and block list)
	if !configuration.FilterAllowedStatusPages && !configuration.FilterBlockedStatusPages {
		stat.Input = len(statusPages)
		stat.Filtered = len(statusPages)
		return statusPages, stat
	}

	filtered := []types.StatusPage{}

	for _, statusPage := range statusPages {
		statusPageID := statusPage.ID.String()

		stat.Input++

		// allow list wins: page is taken only when it is on the list
		if configuration.FilterAllowedStatusPages {
			if collections.StringInSlice(statusPageID, configuration.AllowedStatusPages) {
				stat.Allowed++
				stat.Filtered++
				filtered = append(filtered, statusPage)
			}
			continue
		}

		if collections.StringInSlice(statusPageID, configuration.BlockedStatusPages) {
			stat.Blocked++
			continue
		}

		stat.Filtered++
		filtered = append(filtered, statusPage)
	}

	return filtered, stat
}
