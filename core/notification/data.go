package notification

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Content holds the rendering fields shared by every kind.
type Content struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	ActionText string `json:"action_text,omitempty"`
	ActionURL  string `json:"action_url,omitempty"`
	Icon       string `json:"icon"`
}

// Data is the persisted payload of a notification, one concrete type per Kind.
type Data interface {
	Kind() Kind
	Summary() Content
}

type (
	WelcomeData struct {
		Content
		UserName string `json:"user_name"`
	}

	EventReminderData struct {
		Content
		EventTitle    string    `json:"event_title"`
		EventDate     time.Time `json:"event_date"`
		EventLocation string    `json:"event_location,omitempty"`
		ReminderType  string    `json:"reminder_type"`
	}

	PaymentReceivedData struct {
		Content
		Amount          float64 `json:"amount"`
		Currency        string  `json:"currency"`
		FormattedAmount string  `json:"formatted_amount"`
		PaymentMethod   string  `json:"payment_method"`
		Reference       string  `json:"reference"`
		Description     string  `json:"description,omitempty"`
	}

	AssignmentDueData struct {
		Content
		AssignmentTitle string    `json:"assignment_title"`
		CourseName      string    `json:"course_name"`
		DueDate         time.Time `json:"due_date"`
		TimeRemaining   string    `json:"time_remaining,omitempty"`
		Instructions    string    `json:"instructions,omitempty"`
		Priority        string    `json:"priority"`
	}

	SystemMaintenanceData struct {
		Content
		MaintenanceDate  time.Time `json:"maintenance_date"`
		StartTime        string    `json:"start_time"`
		EndTime          string    `json:"end_time"`
		Description      string    `json:"description"`
		Impact           string    `json:"impact,omitempty"`
		AffectedServices []string  `json:"affected_services,omitempty"`
		MaintenanceType  string    `json:"maintenance_type"`
		Priority         string    `json:"priority"`
	}

	NewMessageData struct {
		Content
		SenderName  string `json:"sender_name"`
		SenderEmail string `json:"sender_email,omitempty"`
		Subject     string `json:"subject"`
		Preview     string `json:"preview"`
		MessageID   string `json:"message_id,omitempty"`
		MessageType string `json:"message_type"`
		Priority    string `json:"priority"`
		Sound       string `json:"sound"`
	}
)

func (d WelcomeData) Kind() Kind           { return KindWelcome }
func (d EventReminderData) Kind() Kind     { return KindEventReminder }
func (d PaymentReceivedData) Kind() Kind   { return KindPaymentReceived }
func (d AssignmentDueData) Kind() Kind     { return KindAssignmentDue }
func (d SystemMaintenanceData) Kind() Kind { return KindSystemMaintenance }
func (d NewMessageData) Kind() Kind        { return KindNewMessage }

func (d WelcomeData) Summary() Content           { return d.Content }
func (d EventReminderData) Summary() Content     { return d.Content }
func (d PaymentReceivedData) Summary() Content   { return d.Content }
func (d AssignmentDueData) Summary() Content     { return d.Content }
func (d SystemMaintenanceData) Summary() Content { return d.Content }
func (d NewMessageData) Summary() Content        { return d.Content }

var dataConstructors = map[Kind]func() Data{
	KindWelcome:           func() Data { return new(WelcomeData) },
	KindEventReminder:     func() Data { return new(EventReminderData) },
	KindPaymentReceived:   func() Data { return new(PaymentReceivedData) },
	KindAssignmentDue:     func() Data { return new(AssignmentDueData) },
	KindSystemMaintenance: func() Data { return new(SystemMaintenanceData) },
	KindNewMessage:        func() Data { return new(NewMessageData) },
}

// DecodeData unmarshals raw into the Data type matching kind.
func DecodeData(kind Kind, raw []byte) (Data, error) {
	newData, ok := dataConstructors[kind]
	if !ok {
		return nil, &UnknownKindError{Identifier: string(kind)}
	}
	data := newData()
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, errors.Wrapf(err, "decoding %s data", kind)
	}
	return data, nil
}
