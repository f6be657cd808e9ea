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

package dispatcher

// Generated documentation is available at:
// https://pkg.go.dev/github.com/RedHatInsights/maintenance-notification-service/dispatcher

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// NoteRenderer converts note body written in markdown into HTML that can be
// embedded into e-mail
type NoteRenderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewNoteRenderer constructs renderer supporting GitHub flavoured markdown
func NewNoteRenderer() *NoteRenderer {
	return &NoteRenderer{
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// RenderNote method converts markdown to sanitized HTML
func (renderer *NoteRenderer) RenderNote(note string) (string, error) {
	var buffer bytes.Buffer

	err := renderer.markdown.Convert([]byte(note), &buffer)
	if err != nil {
		log.Error().Err(err).Msg("Unable to convert note from markdown to HTML")
		return "", err
	}

	return renderer.sanitizer.Sanitize(buffer.String()), nil
}
