package worker

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/aura-portal/backend/pkg/queue"
)

var inviteBody = template.Must(template.New("invite").Parse(`Hi {{if .RecipientName}}{{.RecipientName}}{{else}}there{{end}},

{{if .Resend}}This is a reminder that you have{{else}}You have{{end}} been invited to the {{.ClientName}} client portal as {{.RoleLabel}}.

Accept the invitation and set your password here:
{{.InviteURL}}

If you were not expecting this email you can ignore it.
`))

type inviteView struct {
	queue.InviteEmailPayload
	RoleLabel string
}

// roleLabel turns billing_manager into "a billing manager", admin into "an admin".
func roleLabel(role string) string {
	words := strings.ReplaceAll(role, "_", " ")
	if words == "" {
		return "a member"
	}
	if strings.ContainsRune("aeiou", rune(words[0])) {
		return "an " + words
	}
	return "a " + words
}

// InviteMessage renders the invitation email for p.
func InviteMessage(p queue.InviteEmailPayload) (Message, error) {
	var body strings.Builder
	if err := inviteBody.Execute(&body, inviteView{InviteEmailPayload: p, RoleLabel: roleLabel(p.Role)}); err != nil {
		return Message{}, fmt.Errorf("render invite: %w", err)
	}
	subject := fmt.Sprintf("You're invited to the %s client portal", p.ClientName)
	if p.Resend {
		subject = "Reminder: " + subject
	}
	return Message{To: p.RecipientEmail, ToName: p.RecipientName, Subject: subject, Body: body.String()}, nil
}

// NotificationMessage wraps a workflow notification.
func NotificationMessage(p queue.NotificationEmailPayload) Message {
	return Message{To: p.RecipientEmail, Subject: p.Subject, Body: p.Body}
}
