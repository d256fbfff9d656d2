package notification

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core"
)

var testEnv = buildEnv{AppName: "Masomo", FrontendBaseURL: "http://masomo.test"}

func newTestBuilder() *Builder {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	return NewBuilder(validate, translator, core.NewTestConfig())
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{amount: 1234.5, currency: "EUR", want: "€1,234.50"},
		{amount: 1234.5, currency: "XYZ", want: "XYZ 1,234.50"},
		{amount: 99.9, currency: "", want: "$99.90"},
		{amount: 99.9, currency: "USD", want: "$99.90"},
		{amount: 5, currency: "gbp", want: "£5.00"},
		{amount: 1234567.891, currency: "CDF", want: "CDF 1,234,567.89"},
		{amount: 0.5, currency: "EUR", want: "€0.50"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.currency))
		})
	}
}

func TestPayloads_icons(t *testing.T) {
	want := map[Kind]string{
		KindWelcome:           "hand-wave",
		KindEventReminder:     "calendar",
		KindPaymentReceived:   "credit-card",
		KindAssignmentDue:     "clipboard-list",
		KindSystemMaintenance: "wrench",
		KindNewMessage:        "envelope",
	}
	seen := make(map[string]bool)
	for _, p := range allPayloads() {
		data, _ := p.build(testEnv)
		assert.Equal(t, p.Kind(), data.Kind())
		assert.Equal(t, want[p.Kind()], data.Summary().Icon, p.Kind())
		assert.False(t, seen[data.Summary().Icon], "icon %q is not unique", data.Summary().Icon)
		seen[data.Summary().Icon] = true

		// stable across calls
		again, _ := p.build(testEnv)
		assert.Equal(t, data.Summary().Icon, again.Summary().Icon)
	}
}

func TestPaymentReceived_build(t *testing.T) {
	p := PaymentReceived{Amount: 99.9, PaymentMethod: "card", Reference: "REF1"}
	data, m := p.build(testEnv)

	d, ok := data.(*PaymentReceivedData)
	require.True(t, ok)
	assert.Equal(t, "$99.90", d.FormattedAmount)
	assert.Equal(t, "USD", d.Currency)
	assert.Equal(t, KindPaymentReceived, d.Kind())
	assert.Equal(t, "http://masomo.test/payments", d.ActionURL)
	assert.Equal(t, "Payment Received - REF1", m.Subject)
	assert.Contains(t, m.Lines, "Amount: $99.90")
	assert.NotContains(t, m.Lines, "Description: ")

	p.Currency, p.Amount, p.Description = "EUR", 1234.5, "Term 2 fees"
	data, m = p.build(testEnv)
	assert.Equal(t, "€1,234.50", data.(*PaymentReceivedData).FormattedAmount)
	assert.Contains(t, m.Lines, "Amount: €1,234.50")
	assert.Contains(t, m.Lines, "Description: Term 2 fees")
}

func TestWelcome_build(t *testing.T) {
	data, m := Welcome{UserName: "Jane"}.build(testEnv)
	assert.Equal(t, "http://masomo.test/dashboard", data.Summary().ActionURL)
	assert.Equal(t, "Hello Jane!", m.Greeting)
	require.NotNil(t, m.Action)
	assert.Equal(t, "http://masomo.test/dashboard", m.Action.URL)

	data, m = Welcome{UserName: "Jane", ActionURL: "http://masomo.test/start"}.build(testEnv)
	assert.Equal(t, "http://masomo.test/start", data.Summary().ActionURL)
	assert.Equal(t, "http://masomo.test/start", m.Action.URL)
}

func TestEventReminder_build(t *testing.T) {
	date := time.Date(2021, time.March, 20, 14, 30, 0, 0, time.UTC)
	p := EventReminder{EventTitle: "Science Fair", EventDate: date}
	data, m := p.build(testEnv)

	d := data.(*EventReminderData)
	assert.Equal(t, defaultReminderType, d.ReminderType)
	assert.Equal(t, "http://masomo.test/events", d.ActionURL)
	assert.Equal(t, "Science Fair is scheduled for Saturday, March 20, 2021 at 2:30 PM.", d.Message)
	for _, line := range m.Lines {
		assert.NotContains(t, line, "Location")
	}

	p.EventLocation = "Main Hall"
	data, m = p.build(testEnv)
	assert.Equal(t, "Science Fair is scheduled for Saturday, March 20, 2021 at 2:30 PM at Main Hall.", data.Summary().Message)
	assert.Contains(t, m.Lines, "Location: Main Hall")
}

func TestAssignmentDue_build(t *testing.T) {
	tests := []struct {
		priority    string
		wantSubject string
	}{
		{priority: "", wantSubject: "Assignment Due: Essay"},
		{priority: PriorityHigh, wantSubject: "Assignment Due: Essay"},
		{priority: PriorityUrgent, wantSubject: "URGENT: Assignment Due: Essay"},
	}
	for _, tt := range tests {
		t.Run("priority="+tt.priority, func(t *testing.T) {
			p := AssignmentDue{AssignmentTitle: "Essay", DueDate: testNow, CourseName: "English", Priority: tt.priority}
			data, m := p.build(testEnv)
			assert.Equal(t, tt.wantSubject, m.Subject)
			assert.Equal(t, orDefault(tt.priority, PriorityNormal), data.(*AssignmentDueData).Priority)
		})
	}
}

func TestSystemMaintenance_build(t *testing.T) {
	p := SystemMaintenance{
		MaintenanceDate: testNow, StartTime: "22:00", EndTime: "23:00", Description: "Database upgrade",
		AffectedServices: []string{"payments", "grades"},
	}
	data, m := p.build(testEnv)
	d := data.(*SystemMaintenanceData)
	assert.Equal(t, PriorityNormal, d.Priority)
	assert.Equal(t, MaintenanceScheduled, d.MaintenanceType)
	assert.Equal(t, "System Maintenance: Wednesday, March 17, 2021", m.Subject)
	assert.Empty(t, m.UrgencyLine)
	assert.Contains(t, m.Lines, "Affected Services: payments, grades")
	for _, line := range m.Lines {
		assert.NotContains(t, line, "Impact")
	}

	p.MaintenanceType = MaintenanceEmergency
	data, m = p.build(testEnv)
	assert.Equal(t, PriorityHigh, data.(*SystemMaintenanceData).Priority)
	assert.Equal(t, "🚨 EMERGENCY: System Maintenance: Wednesday, March 17, 2021", m.Subject)
	assert.NotEmpty(t, m.UrgencyLine)
}

func TestNewMessage_build(t *testing.T) {
	tests := []struct {
		priority    string
		wantSubject string
	}{
		{priority: "", wantSubject: "New Message: Homework"},
		{priority: PriorityHigh, wantSubject: "IMPORTANT: New Message: Homework"},
		{priority: PriorityUrgent, wantSubject: "URGENT: New Message: Homework"},
	}
	for _, tt := range tests {
		t.Run("priority="+tt.priority, func(t *testing.T) {
			p := NewMessage{SenderName: "Mr. Smith", Subject: "Homework", Preview: "Please review", Priority: tt.priority}
			data, m := p.build(testEnv)
			d := data.(*NewMessageData)
			assert.Equal(t, tt.wantSubject, m.Subject)
			assert.Equal(t, defaultMessageType, d.MessageType)
			assert.Equal(t, "New message from Mr. Smith", d.Title)
		})
	}
}

func TestCleanPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    Payload
	}{
		{
			name:    "new message priority",
			payload: NewMessage{SenderName: "Mr. Smith", Priority: " URGENT "},
			want:    NewMessage{SenderName: "Mr. Smith", Priority: PriorityUrgent},
		},
		{
			name:    "assignment priority",
			payload: AssignmentDue{AssignmentTitle: "Essay", Priority: "High"},
			want:    AssignmentDue{AssignmentTitle: "Essay", Priority: PriorityHigh},
		},
		{
			name:    "maintenance type",
			payload: SystemMaintenance{Description: "Outage", MaintenanceType: "Emergency"},
			want:    SystemMaintenance{Description: "Outage", MaintenanceType: MaintenanceEmergency},
		},
		{
			name:    "nothing to clean",
			payload: Welcome{UserName: "JANE"},
			want:    Welcome{UserName: "JANE"},
		},
		{name: "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPayload(tt.payload))
		})
	}
}

func TestBuilder_Build(t *testing.T) {
	b := newTestBuilder()

	tests := []struct {
		name       string
		payload    Payload
		wantFields []string
	}{
		{name: "nil payload", payload: nil},
		{name: "welcome: missing name", payload: Welcome{}, wantFields: []string{"user_name"}},
		{name: "welcome: blank name", payload: Welcome{UserName: "  "}, wantFields: []string{"user_name"}},
		{name: "welcome: invalid url", payload: Welcome{UserName: "Jane", ActionURL: "lol"}, wantFields: []string{"action_url"}},
		{name: "event: missing date", payload: EventReminder{EventTitle: "Fair"}, wantFields: []string{"event_date"}},
		{
			name:       "payment: missing all",
			payload:    PaymentReceived{},
			wantFields: []string{"amount", "payment_method", "reference"},
		},
		{
			name:       "payment: negative amount",
			payload:    PaymentReceived{Amount: -5, PaymentMethod: "card", Reference: "R"},
			wantFields: []string{"amount"},
		},
		{
			name:       "assignment: bad priority",
			payload:    AssignmentDue{AssignmentTitle: "Essay", DueDate: testNow, CourseName: "English", Priority: "asap"},
			wantFields: []string{"priority"},
		},
		{
			name:       "maintenance: bad type",
			payload:    SystemMaintenance{MaintenanceDate: testNow, StartTime: "1", EndTime: "2", Description: "d", MaintenanceType: "lol"},
			wantFields: []string{"maintenance_type"},
		},
		{
			name:       "message: bad sender email",
			payload:    &NewMessage{SenderName: "A", Subject: "B", Preview: "C", SenderEmail: "lol"},
			wantFields: []string{"sender_email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := b.Build(tt.payload)
			require.Error(t, err)
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "want *core.ValidationError, got %T", err)
			fields := make([]string, 0, len(vErr.Fields))
			for _, f := range vErr.Fields {
				fields = append(fields, f.Field)
			}
			if len(tt.wantFields) == 0 {
				assert.Empty(t, fields)
				return
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}

	for _, p := range allPayloads() {
		data, m, err := b.Build(p)
		require.NoError(t, err, p.Kind())
		assert.NotEmpty(t, data.Summary().Title)
		assert.NotEmpty(t, m.Subject)
		assert.NotEmpty(t, m.Lines)
		assert.Equal(t, "Regards, the Masomo team", m.Salutation)
	}
}

func TestMail_For(t *testing.T) {
	m := newMail("Subject", "Masomo")
	assert.Equal(t, "Hello Jane!", m.For("Jane").Greeting)
	assert.Equal(t, defaultGreeting, m.For("").Greeting)
	assert.Equal(t, defaultGreeting, m.Greeting)

	m.greet("Hello John!")
	assert.Equal(t, "Hello John!", m.For("Jane").Greeting)
}
