package notification

// Kind is the type tag of a notification; it discriminates the shape of its Data.
type Kind string

const (
	KindWelcome           Kind = "welcome"
	KindEventReminder     Kind = "event_reminder"
	KindPaymentReceived   Kind = "payment_received"
	KindAssignmentDue     Kind = "assignment_due"
	KindSystemMaintenance Kind = "system_maintenance"
	KindNewMessage        Kind = "new_message"
)

// Kinds lists every known notification kind.
var Kinds = []Kind{
	KindWelcome,
	KindEventReminder,
	KindPaymentReceived,
	KindAssignmentDue,
	KindSystemMaintenance,
	KindNewMessage,
}

var (
	kindNames = map[Kind]string{
		KindWelcome:           "Welcome",
		KindEventReminder:     "EventReminder",
		KindPaymentReceived:   "PaymentReceived",
		KindAssignmentDue:     "AssignmentDue",
		KindSystemMaintenance: "SystemMaintenance",
		KindNewMessage:        "NewMessage",
	}

	// icons are rendered by the notification center
	kindIcons = map[Kind]string{
		KindWelcome:           "hand-wave",
		KindEventReminder:     "calendar",
		KindPaymentReceived:   "credit-card",
		KindAssignmentDue:     "clipboard-list",
		KindSystemMaintenance: "wrench",
		KindNewMessage:        "envelope",
	}
)

func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// DisplayName returns the CamelCase name of the kind, eg. PaymentReceived.
func (k Kind) DisplayName() string { return kindNames[k] }

func (k Kind) Icon() string { return kindIcons[k] }

func (k Kind) String() string { return string(k) }

// Channel is a delivery mechanism.
type Channel string

const (
	ChannelDatabase Channel = "database" // persisted in-app record
	ChannelMail     Channel = "mail"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Maintenance types
const (
	MaintenanceScheduled = "scheduled"
	MaintenanceEmergency = "emergency"
)

// Sound hints
const (
	SoundUrgentAlert   = "urgent-alert"
	SoundPriorityAlert = "priority-alert"
	SoundMessageTone   = "message-tone"
)
