package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKind(t *testing.T) {
	tests := []struct {
		identifier string
		want       Kind
		wantErr    bool
	}{
		{identifier: "welcome", want: KindWelcome},
		{identifier: "Welcome", want: KindWelcome},
		{identifier: "payment_received", want: KindPaymentReceived},
		{identifier: "PaymentReceived", want: KindPaymentReceived},
		{identifier: " SystemMaintenance ", want: KindSystemMaintenance},
		{identifier: "new_message", want: KindNewMessage},
		{identifier: "NonExistent", wantErr: true},
		{identifier: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			got, err := LookupKind(tt.identifier)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsUnknownKind(err))
				assert.Contains(t, err.Error(), tt.identifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_complete(t *testing.T) {
	for _, kind := range Kinds {
		assert.True(t, kind.IsValid())
		assert.NotEmpty(t, kind.DisplayName())
		assert.NotEmpty(t, kind.Icon())
		assert.Equal(t, kind, payloadConstructors[kind]().Kind())
		assert.Equal(t, kind, dataConstructors[kind]().Kind())
	}
	assert.Len(t, registry, 2*len(Kinds))
	assert.False(t, Kind("nope").IsValid())
}

func TestDecodePayload(t *testing.T) {
	t.Run("weakly typed amount", func(t *testing.T) {
		p, err := DecodePayload("PaymentReceived", map[string]interface{}{
			"amount":         "99.90",
			"payment_method": "card",
			"reference":      "REF1",
		})
		require.NoError(t, err)
		pr, ok := p.(*PaymentReceived)
		require.True(t, ok)
		assert.Equal(t, 99.9, pr.Amount)
		assert.Equal(t, "card", pr.PaymentMethod)
		assert.Equal(t, "REF1", pr.Reference)
	})

	t.Run("RFC 3339 date", func(t *testing.T) {
		p, err := DecodePayload("event_reminder", map[string]interface{}{
			"event_title": "Science Fair",
			"event_date":  "2021-03-20T14:30:00Z",
		})
		require.NoError(t, err)
		er := p.(*EventReminder)
		assert.True(t, er.EventDate.Equal(time.Date(2021, time.March, 20, 14, 30, 0, 0, time.UTC)))
	})

	t.Run("time value", func(t *testing.T) {
		p, err := DecodePayload("AssignmentDue", map[string]interface{}{
			"assignment_title": "Essay",
			"course_name":      "English",
			"due_date":         testNow,
		})
		require.NoError(t, err)
		assert.True(t, p.(*AssignmentDue).DueDate.Equal(testNow))
	})

	t.Run("services list", func(t *testing.T) {
		p, err := DecodePayload("SystemMaintenance", map[string]interface{}{
			"affected_services": "payments,grades",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"payments", "grades"}, p.(*SystemMaintenance).AffectedServices)

		p, err = DecodePayload("SystemMaintenance", map[string]interface{}{
			"affected_services": []interface{}{"payments"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"payments"}, p.(*SystemMaintenance).AffectedServices)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := DecodePayload("NonExistent", map[string]interface{}{"foo": "bar"})
		require.Error(t, err)
		assert.True(t, IsUnknownKind(err))
	})

	t.Run("malformed field", func(t *testing.T) {
		_, err := DecodePayload("PaymentReceived", map[string]interface{}{"amount": "lots"})
		require.Error(t, err)
		assert.False(t, IsUnknownKind(err))
	})

	t.Run("nil data", func(t *testing.T) {
		p, err := DecodePayload("Welcome", nil)
		require.NoError(t, err)
		assert.Equal(t, &Welcome{}, p)
	})
}
