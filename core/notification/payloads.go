package notification

import (
	"strings"
	"time"

	"github.com/trezcool/masomo-notifications/core"
)

const (
	dateLayout     = "Monday, January 2, 2006"
	dateTimeLayout = "Monday, January 2, 2006 at 3:04 PM"

	defaultReminderType = "upcoming"
	defaultMessageType  = "message"
)

// Payload is the input of a notification kind. The set of payloads is closed:
// Welcome, EventReminder, PaymentReceived, AssignmentDue, SystemMaintenance and NewMessage.
type Payload interface {
	Kind() Kind
	build(env buildEnv) (Data, *Mail)
}

// buildEnv carries the application settings the builders render with.
type buildEnv struct {
	AppName         string
	FrontendBaseURL string
}

func (env buildEnv) url(actionURL, path string) string {
	if actionURL != "" {
		return actionURL
	}
	return env.FrontendBaseURL + path
}

func content(kind Kind, title, message, actionText, actionURL string) Content {
	return Content{
		Title:      title,
		Message:    message,
		ActionText: actionText,
		ActionURL:  actionURL,
		Icon:       kind.Icon(),
	}
}

// cleaner is implemented by the payloads whose enumerated fields are case-insensitive.
type cleaner interface {
	clean() Payload
}

// CleanPayload normalizes the enumerated fields of p, eg. a NewMessage priority "URGENT" becomes "urgent".
func CleanPayload(p Payload) Payload {
	if c, ok := p.(cleaner); ok {
		return c.clean()
	}
	return p
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

type Welcome struct {
	UserName  string `json:"user_name" validate:"required,notblank"`
	ActionURL string `json:"action_url" validate:"omitempty,url"`
}

func (p Welcome) Kind() Kind { return KindWelcome }

func (p Welcome) build(env buildEnv) (Data, *Mail) {
	url := env.url(p.ActionURL, "/dashboard")
	title := "Welcome to " + env.AppName + "!"

	data := &WelcomeData{
		Content: content(
			p.Kind(), title,
			"Hi "+p.UserName+", your account is ready. Head to your dashboard to get started.",
			"Go to Dashboard", url,
		),
		UserName: p.UserName,
	}

	m := newMail(title, env.AppName).
		greet("Hello "+p.UserName+"!").
		line("Your %s account has been created successfully.", env.AppName).
		line("From your dashboard you can follow your courses, events, assignments and payments.").
		action("Go to Dashboard", url)
	return data, m
}

type EventReminder struct {
	EventTitle    string    `json:"event_title" validate:"required,notblank"`
	EventDate     time.Time `json:"event_date" validate:"required"`
	EventLocation string    `json:"event_location"`
	ActionURL     string    `json:"action_url" validate:"omitempty,url"`
	ReminderType  string    `json:"reminder_type" validate:"omitempty,max=50"`
}

func (p EventReminder) Kind() Kind { return KindEventReminder }

func (p EventReminder) build(env buildEnv) (Data, *Mail) {
	url := env.url(p.ActionURL, "/events")
	date := p.EventDate.Format(dateTimeLayout)

	msg := p.EventTitle + " is scheduled for " + date
	if p.EventLocation != "" {
		msg += " at " + p.EventLocation
	}

	data := &EventReminderData{
		Content:       content(p.Kind(), "Event Reminder: "+p.EventTitle, msg+".", "View Event", url),
		EventTitle:    p.EventTitle,
		EventDate:     p.EventDate,
		EventLocation: p.EventLocation,
		ReminderType:  orDefault(p.ReminderType, defaultReminderType),
	}

	m := newMail("Event Reminder: "+p.EventTitle, env.AppName).
		line("This is a reminder about an upcoming event.").
		line("Event: %s", p.EventTitle).
		line("Date: %s", date).
		lineIf(p.EventLocation, "Location: %s", p.EventLocation).
		action("View Event", url)
	return data, m
}

type PaymentReceived struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,notblank"`
	Reference     string  `json:"reference" validate:"required,notblank"`
	ActionURL     string  `json:"action_url" validate:"omitempty,url"`
	Currency      string  `json:"currency" validate:"omitempty,alpha,len=3"`
	Description   string  `json:"description"`
}

func (p PaymentReceived) Kind() Kind { return KindPaymentReceived }

func (p PaymentReceived) build(env buildEnv) (Data, *Mail) {
	url := env.url(p.ActionURL, "/payments")
	currency := strings.ToUpper(orDefault(p.Currency, DefaultCurrency))
	amount := FormatAmount(p.Amount, currency)

	data := &PaymentReceivedData{
		Content: content(
			p.Kind(), "Payment Received",
			"We received your payment of "+amount+" via "+p.PaymentMethod+".",
			"View Payment", url,
		),
		Amount:          p.Amount,
		Currency:        currency,
		FormattedAmount: amount,
		PaymentMethod:   p.PaymentMethod,
		Reference:       p.Reference,
		Description:     p.Description,
	}

	m := newMail("Payment Received - "+p.Reference, env.AppName).
		line("We have received your payment, thank you.").
		line("Amount: %s", amount).
		line("Payment Method: %s", p.PaymentMethod).
		line("Reference: %s", p.Reference).
		lineIf(p.Description, "Description: %s", p.Description).
		action("View Payment Details", url)
	return data, m
}

type AssignmentDue struct {
	AssignmentTitle string    `json:"assignment_title" validate:"required,notblank"`
	DueDate         time.Time `json:"due_date" validate:"required"`
	CourseName      string    `json:"course_name" validate:"required,notblank"`
	ActionURL       string    `json:"action_url" validate:"omitempty,url"`
	TimeRemaining   string    `json:"time_remaining"`
	Instructions    string    `json:"instructions"`
	Priority        string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

func (p AssignmentDue) Kind() Kind { return KindAssignmentDue }

func (p AssignmentDue) clean() Payload {
	p.Priority = core.CleanString(p.Priority, true /* lower */)
	return p
}

func (p AssignmentDue) priority() string { return orDefault(p.Priority, PriorityNormal) }

func (p AssignmentDue) build(env buildEnv) (Data, *Mail) {
	url := env.url(p.ActionURL, "/assignments")
	due := p.DueDate.Format(dateTimeLayout)

	msg := p.AssignmentTitle + " (" + p.CourseName + ") is due on " + due
	if p.TimeRemaining != "" {
		msg += ", " + p.TimeRemaining + " remaining"
	}

	data := &AssignmentDueData{
		Content:         content(p.Kind(), "Assignment Due: "+p.AssignmentTitle, msg+".", "View Assignment", url),
		AssignmentTitle: p.AssignmentTitle,
		CourseName:      p.CourseName,
		DueDate:         p.DueDate,
		TimeRemaining:   p.TimeRemaining,
		Instructions:    p.Instructions,
		Priority:        p.priority(),
	}

	subject := "Assignment Due: " + p.AssignmentTitle
	if p.priority() == PriorityUrgent {
		subject = "URGENT: " + subject
	}
	m := newMail(subject, env.AppName).
		line("An assignment is due soon.").
		line("Assignment: %s", p.AssignmentTitle).
		line("Course: %s", p.CourseName).
		line("Due Date: %s", due).
		lineIf(p.TimeRemaining, "Time Remaining: %s", p.TimeRemaining).
		lineIf(p.Instructions, "Instructions: %s", p.Instructions).
		action("View Assignment", url)
	return data, m
}

type SystemMaintenance struct {
	MaintenanceDate  time.Time `json:"maintenance_date" validate:"required"`
	StartTime        string    `json:"start_time" validate:"required,notblank"`
	EndTime          string    `json:"end_time" validate:"required,notblank"`
	Description      string    `json:"description" validate:"required,notblank"`
	Impact           string    `json:"impact"`
	AffectedServices []string  `json:"affected_services"`
	MaintenanceType  string    `json:"maintenance_type" validate:"omitempty,oneof=scheduled emergency"`
}

func (p SystemMaintenance) Kind() Kind { return KindSystemMaintenance }

func (p SystemMaintenance) clean() Payload {
	p.MaintenanceType = core.CleanString(p.MaintenanceType, true /* lower */)
	return p
}

func (p SystemMaintenance) maintenanceType() string {
	return orDefault(p.MaintenanceType, MaintenanceScheduled)
}

func (p SystemMaintenance) isEmergency() bool { return p.maintenanceType() == MaintenanceEmergency }

func (p SystemMaintenance) build(env buildEnv) (Data, *Mail) {
	date := p.MaintenanceDate.Format(dateLayout)
	window := p.StartTime + " - " + p.EndTime

	title, priority := "Scheduled Maintenance", PriorityNormal
	if p.isEmergency() {
		title, priority = "Emergency Maintenance", PriorityHigh
	}

	data := &SystemMaintenanceData{
		Content: content(
			p.Kind(), title,
			env.AppName+" will be under maintenance on "+date+" ("+window+"). "+p.Description,
			"", "",
		),
		MaintenanceDate:  p.MaintenanceDate,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		Description:      p.Description,
		Impact:           p.Impact,
		AffectedServices: p.AffectedServices,
		MaintenanceType:  p.maintenanceType(),
		Priority:         priority,
	}

	subject := "System Maintenance: " + date
	m := newMail(subject, env.AppName)
	if p.isEmergency() {
		m.Subject = "🚨 EMERGENCY: " + subject
		m.urgent("Emergency maintenance: please save your work before " + p.StartTime + ".")
	}
	m.line("%s will be unavailable during a %s maintenance.", env.AppName, p.maintenanceType()).
		line("Date: %s", date).
		line("Time: %s", window).
		line("Description: %s", p.Description).
		lineIf(p.Impact, "Impact: %s", p.Impact).
		lineIf(strings.Join(p.AffectedServices, ""), "Affected Services: %s", strings.Join(p.AffectedServices, ", ")).
		line("We apologize for any inconvenience.")
	return data, m
}

type NewMessage struct {
	SenderName  string `json:"sender_name" validate:"required,notblank"`
	Subject     string `json:"subject" validate:"required,notblank"`
	Preview     string `json:"preview" validate:"required"`
	ActionURL   string `json:"action_url" validate:"omitempty,url"`
	SenderEmail string `json:"sender_email" validate:"omitempty,email"`
	MessageID   string `json:"message_id"`
	MessageType string `json:"message_type" validate:"omitempty,max=50"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
}

func (p NewMessage) Kind() Kind { return KindNewMessage }

func (p NewMessage) clean() Payload {
	p.Priority = core.CleanString(p.Priority, true /* lower */)
	return p
}

func (p NewMessage) priority() string { return orDefault(p.Priority, PriorityNormal) }

func (p NewMessage) build(env buildEnv) (Data, *Mail) {
	url := env.url(p.ActionURL, "/messages")

	data := &NewMessageData{
		Content: content(
			p.Kind(), "New message from "+p.SenderName,
			p.Subject+": "+p.Preview,
			"Read Message", url,
		),
		SenderName:  p.SenderName,
		SenderEmail: p.SenderEmail,
		Subject:     p.Subject,
		Preview:     p.Preview,
		MessageID:   p.MessageID,
		MessageType: orDefault(p.MessageType, defaultMessageType),
		Priority:    p.priority(),
		Sound:       p.sound(),
	}

	subject := "New Message: " + p.Subject
	switch p.priority() {
	case PriorityUrgent:
		subject = "URGENT: " + subject
	case PriorityHigh:
		subject = "IMPORTANT: " + subject
	}
	from := p.SenderName
	if p.SenderEmail != "" {
		from += " <" + p.SenderEmail + ">"
	}
	m := newMail(subject, env.AppName).
		line("You have received a new message from %s.", from).
		line("Subject: %s", p.Subject).
		line("\"%s\"", p.Preview).
		action("Read Message", url)
	return data, m
}
