package notify

import (
	"fmt"
	"strings"
	"text/template"
)

var subjectTmpl = template.Must(template.New("subject").Parse(
	`[{{.Project}}] run #{{.RunNumber}} {{.Verb}} on {{.Branch}}`))

var bodyTmpl = template.Must(template.New("body").Parse(`Pipeline run #{{.RunNumber}} {{.Verb}}.

Project:   {{.Project}}
Branch:    {{.Branch}}
Revision:  {{.Revision}}
Run ID:    {{.RunID}}
{{- if .Image}}
Image:     {{.Image}}
{{- end}}
{{- if .TargetURL}}
Target:    {{.TargetURL}}
{{- end}}
{{- if .BuildURL}}
Build:     {{.BuildURL}}
{{- end}}
Finished:  {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}

Stages:
{{- range .Stages}}
  {{printf "%-24s" .Name}} {{.Status}}{{if gt .Duration 0}} ({{.Duration}}){{end}}
{{- end}}
{{- if .FailureDetail}}

Failing stage output:
{{.FailureDetail}}
{{- end}}
`))

type renderData struct {
	Event
	Verb string
}

// Render produces the subject and body for an event from the fixed
// per-outcome templates.
func Render(ev Event) (subject, body string, err error) {
	data := renderData{Event: ev, Verb: ev.Outcome.verb()}

	var sb strings.Builder
	if err := subjectTmpl.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("rendering subject: %w", err)
	}
	subject = sb.String()

	var bb strings.Builder
	if err := bodyTmpl.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("rendering body: %w", err)
	}
	return subject, bb.String(), nil
}
