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
	"bytes"
	"embed"
	"html/template"

	"github.com/rs/zerolog/log"

	"github.com/RedHatInsights/maintenance-notification-service/types"
)

// variables holding already rendered HTML
var htmlVars = map[string]bool{
	"note": true,
}

//go:embed templates/*.html
var templateFiles embed.FS

var emailTemplates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// renderEmailBody function renders HTML body of e-mail that is sent directly
// (not via notification backend)
func renderEmailBody(message *types.EmailMessage) (string, error) {
	data := make(map[string]interface{}, len(message.Vars))
	for key, value := range message.Vars {
		if htmlVars[key] {
			// note is sanitized when converted from markdown
			data[key] = template.HTML(value) // #nosec G203
		} else {
			data[key] = value
		}
	}

	var buffer bytes.Buffer
	err := emailTemplates.ExecuteTemplate(&buffer, string(message.TemplateType)+".html", data)
	if err != nil {
		log.Error().Err(err).Str("template", string(message.TemplateType)).Msg("Unable to render e-mail")
		return "", err
	}

	return buffer.String(), nil
}
