package content

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
)

const (
	// Placeholder is shown in place of any optional field the record omitted.
	Placeholder     = "N/A"
	genericGreeting = "Hello there,"
	subjectPrefix   = "Application received"
)

// Message is the rendered applicant confirmation. It is never persisted.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type notificationView struct {
	Greeting    string
	JobName     string
	JobID       string
	ClientName  string
	Salary      string
	Duration    string
	CoverLetter string
	AppliedAt   string
}

var (
	htmlNotification = htmltemplate.Must(htmltemplate.New("notification.html").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <p>{{.Greeting}}</p>
    <p>Thanks for applying. Your application has been delivered to the client and is awaiting review.</p>
    <h3>Application details</h3>
    <table cellpadding="4">
      <tr><td><strong>Job</strong></td><td>{{.JobName}}</td></tr>
      <tr><td><strong>Job ID</strong></td><td>{{.JobID}}</td></tr>
      <tr><td><strong>Client</strong></td><td>{{.ClientName}}</td></tr>
      <tr><td><strong>Salary</strong></td><td>{{.Salary}}</td></tr>
      <tr><td><strong>Duration</strong></td><td>{{.Duration}}</td></tr>
      <tr><td><strong>Applied at</strong></td><td>{{.AppliedAt}}</td></tr>
    </table>
    <h3>Cover letter</h3>
    <p>{{.CoverLetter}}</p>
    <p>We will let you know as soon as the client responds.</p>
    <p>The GigFlow team</p>
  </body>
</html>
`))

	textNotification = texttemplate.Must(texttemplate.New("notification.txt").Parse(`{{.Greeting}}

Thanks for applying. Your application has been delivered to the client and is awaiting review.

Application details
Job: {{.JobName}}
Job ID: {{.JobID}}
Client: {{.ClientName}}
Salary: {{.Salary}}
Duration: {{.Duration}}
Applied at: {{.AppliedAt}}

Cover letter:
{{.CoverLetter}}

We will let you know as soon as the client responds.
The GigFlow team
`))
)

// BuildNotification renders the applicant confirmation for a created
// application. It performs no I/O and is deterministic for a given input.
func BuildNotification(fields events.ApplicationFields, occurredAt time.Time) (Message, error) {
	view := notificationView{
		Greeting:    genericGreeting,
		JobName:     orPlaceholder(fields.JobName),
		JobID:       orPlaceholder(fields.JobID),
		ClientName:  orPlaceholder(fields.ClientName),
		Salary:      orPlaceholder(fields.Salary),
		Duration:    orPlaceholder(fields.Duration),
		CoverLetter: orPlaceholder(fields.CoverLetter),
		AppliedAt:   Placeholder,
	}
	if name := trimmed(fields.FreelancerName); name != "" {
		view.Greeting = "Hello " + name + ","
	}
	if !occurredAt.IsZero() {
		view.AppliedAt = occurredAt.UTC().Format("Jan 2, 2006 15:04 MST")
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlNotification.Execute(&htmlBuf, view); err != nil {
		return Message{}, err
	}
	if err := textNotification.Execute(&textBuf, view); err != nil {
		return Message{}, err
	}

	subject := subjectPrefix
	if job := trimmed(fields.JobName); job != "" {
		subject += ": " + job
	}
	return Message{
		Subject: subject,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

func orPlaceholder(value *string) string {
	if v := trimmed(value); v != "" {
		return v
	}
	return Placeholder
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
