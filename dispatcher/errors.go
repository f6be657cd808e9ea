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

import "fmt"

// StorageError represents failed storage operation that aborts the run
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying storage error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// StatusMetricsError is raised when metrics cannot be pushed to gateway
type StatusMetricsError struct{}

func (e *StatusMetricsError) Error() string {
	return "StatusMetricsError"
}

// SchedulerError is raised when cron schedule cannot be parsed
type SchedulerError struct {
	Schedule string
	Err      error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %v", e.Schedule, e.Err)
}

// Unwrap returns the underlying parser error
func (e *SchedulerError) Unwrap() error {
	return e.Err
}
