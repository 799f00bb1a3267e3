package notify

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"
	"time"
)

const dueLayout = "Mon, Jan 2, 3:04 PM"

var reminderTemplate = template.Must(template.New("reminder").Parse(`<div style="font-family: 'Inter', -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 0 auto; background: #f8fafc; padding: 20px; border-radius: 16px;">
  <div style="background: linear-gradient(135deg, #6366f1 0%, #06b6d4 100%); padding: 32px; border-radius: 16px; color: white; text-align: center; margin-bottom: 24px;">
    <h1 style="margin: 0; font-size: 24px; font-weight: 700;">TaskFlow Pro</h1>
    <p style="margin: 8px 0 0 0; font-size: 14px; text-transform: uppercase; letter-spacing: 1px;">Task Reminder</p>
  </div>
  <div style="background: white; padding: 32px; border-radius: 16px;">
    <p style="margin: 0 0 20px 0; color: #334155; font-size: 16px;">Hi <strong>{{.Name}}</strong>,</p>
    <p style="margin: 0 0 24px 0; color: #64748b;">This is a friendly reminder about a task that is due soon:</p>
    <div style="background: #f1f5f9; border-left: 4px solid #6366f1; padding: 20px; margin: 0 0 24px 0;">
      <p style="margin: 0; color: #0f172a; font-weight: 600; font-size: 18px;">{{.TaskText}}</p>
      {{- if .Due}}
      <div style="margin-top: 12px; color: #64748b; font-size: 14px;">Due: {{.Due}}</div>
      {{- end}}
    </div>
    <a href="{{.Link}}" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none;">Open TaskFlow</a>
  </div>
</div>
`))

type emailData struct {
	Name     string
	TaskText string
	Due      string
	Link     string
}

// Email is a rendered reminder ready for a Mailer.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// actionLink opens the login page and returns to the task list afterwards.
func actionLink(appURL string) string {
	return strings.TrimRight(appURL, "/") + "/todo.html?returnTo=" + url.QueryEscape("#/app/tasks") + "#/login"
}

func formatDue(due *time.Time, loc *time.Location) string {
	if due == nil {
		return ""
	}
	if loc != nil {
		return due.In(loc).Format(dueLayout)
	}
	return due.Format(dueLayout)
}

// RenderReminder builds the reminder email. due may be nil.
func RenderReminder(to, userName, taskText string, due *time.Time, appURL string, loc *time.Location) (Email, error) {
	data := emailData{
		Name:     strings.TrimSpace(userName),
		TaskText: taskText,
		Due:      formatDue(due, loc),
		Link:     actionLink(appURL),
	}
	if data.Name == "" {
		data.Name = "there"
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return Email{}, err
	}

	text := "Hi " + data.Name + ",\n\nThis is a friendly reminder about a task that is due soon:\n\n" + taskText + "\n"
	if data.Due != "" {
		text += "Due: " + data.Due + "\n"
	}
	text += "\n" + data.Link + "\n"

	return Email{
		To:      to,
		Subject: "Task Reminder: " + taskText,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}
