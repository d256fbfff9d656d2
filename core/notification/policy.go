package notification

import "time"

const (
	staleAssignmentAfter = 7 * 24 * time.Hour
	maintenanceBatchWait = 5 * time.Minute
)

var defaultChannels = []Channel{ChannelDatabase, ChannelMail}

// Policy tells how a notification is to be delivered.
type Policy struct {
	Channels   []Channel
	ShouldSend bool
	DelayUntil *time.Time // nil: send immediately
	Sound      string     // advisory realtime hint
}

func (p Policy) Has(ch Channel) bool {
	return hasChannel(p.Channels, ch)
}

func hasChannel(channels []Channel, ch Channel) bool {
	for _, c := range channels {
		if c == ch {
			return true
		}
	}
	return false
}

// kinds override the default policy by implementing any of these
type (
	channelSelector interface {
		channels() []Channel
	}
	sendGate interface {
		shouldSend(now time.Time) bool
	}
	deferrer interface {
		delayUntil(now time.Time) *time.Time
	}
	soundHinter interface {
		sound() string
	}
)

// ResolveDelivery returns the delivery policy of p at `now`.
func ResolveDelivery(p Payload, now time.Time) Policy {
	pol := Policy{
		Channels:   append([]Channel(nil), defaultChannels...),
		ShouldSend: true,
	}
	if cs, ok := p.(channelSelector); ok {
		pol.Channels = cs.channels()
	}
	if sg, ok := p.(sendGate); ok {
		pol.ShouldSend = sg.shouldSend(now)
	}
	if d, ok := p.(deferrer); ok {
		pol.DelayUntil = d.delayUntil(now)
	}
	if sh, ok := p.(soundHinter); ok {
		pol.Sound = sh.sound()
	}
	return pol
}

// assignments more than a week overdue are stale
func (p AssignmentDue) shouldSend(now time.Time) bool {
	return !p.DueDate.Before(now.Add(-staleAssignmentAfter))
}

// non-emergency maintenance notices wait to be batched with other notifications
func (p SystemMaintenance) delayUntil(now time.Time) *time.Time {
	if p.isEmergency() {
		return nil
	}
	at := now.Add(maintenanceBatchWait)
	return &at
}

func (p NewMessage) channels() []Channel {
	switch p.priority() {
	case PriorityHigh, PriorityUrgent:
		return []Channel{ChannelDatabase, ChannelMail}
	default:
		return []Channel{ChannelDatabase}
	}
}

func (p NewMessage) sound() string {
	switch p.priority() {
	case PriorityUrgent:
		return SoundUrgentAlert
	case PriorityHigh:
		return SoundPriorityAlert
	default:
		return SoundMessageTone
	}
}
