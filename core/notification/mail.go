package notification

import (
	"fmt"
	"net/mail"

	"github.com/trezcool/masomo-notifications/core"
)

const (
	mailTemplateName = "notification"
	defaultGreeting  = "Hello!"
)

type MailAction struct {
	Label string
	URL   string
}

// Mail is the structured email rendered by the shared notification template.
type Mail struct {
	Subject     string
	Greeting    string
	Lines       []string
	Action      *MailAction
	UrgencyLine string
	Salutation  string
}

func newMail(subject string, appName string) *Mail {
	return &Mail{
		Subject:    subject,
		Greeting:   defaultGreeting,
		Salutation: "Regards, the " + appName + " team",
	}
}

func (m *Mail) greet(greeting string) *Mail {
	m.Greeting = greeting
	return m
}

func (m *Mail) line(format string, args ...interface{}) *Mail {
	m.Lines = append(m.Lines, fmt.Sprintf(format, args...))
	return m
}

// lineIf adds the line only when value is not empty.
func (m *Mail) lineIf(value, format string, args ...interface{}) *Mail {
	if value == "" {
		return m
	}
	return m.line(format, args...)
}

func (m *Mail) action(label, url string) *Mail {
	if url != "" {
		m.Action = &MailAction{Label: label, URL: url}
	}
	return m
}

func (m *Mail) urgent(line string) *Mail {
	m.UrgencyLine = line
	return m
}

// For personalizes the default greeting with the recipient's name.
func (m Mail) For(name string) Mail {
	if name != "" && m.Greeting == defaultGreeting {
		m.Greeting = "Hello " + name + "!"
	}
	return m
}

// Message returns the email message sent to `to`.
func (m Mail) Message(to mail.Address) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      m.Subject,
		TemplateName: mailTemplateName,
		TemplateData: m,
	}
}
