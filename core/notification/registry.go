package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

var payloadConstructors = map[Kind]func() Payload{
	KindWelcome:           func() Payload { return new(Welcome) },
	KindEventReminder:     func() Payload { return new(EventReminder) },
	KindPaymentReceived:   func() Payload { return new(PaymentReceived) },
	KindAssignmentDue:     func() Payload { return new(AssignmentDue) },
	KindSystemMaintenance: func() Payload { return new(SystemMaintenance) },
	KindNewMessage:        func() Payload { return new(NewMessage) },
}

// registry resolves kind identifiers (tag or display name) to kinds.
var registry = newRegistry()

func newRegistry() map[string]Kind {
	reg := make(map[string]Kind, 2*len(Kinds))
	for _, kind := range Kinds {
		if _, ok := payloadConstructors[kind]; !ok {
			panic(fmt.Sprintf("notification: no payload registered for %q", kind))
		}
		if _, ok := dataConstructors[kind]; !ok {
			panic(fmt.Sprintf("notification: no data registered for %q", kind))
		}
		for _, key := range []string{string(kind), kind.DisplayName()} {
			if _, dup := reg[key]; dup {
				panic(fmt.Sprintf("notification: duplicate kind identifier %q", key))
			}
			reg[key] = kind
		}
	}
	return reg
}

// LookupKind resolves identifier, eg. "payment_received" or "PaymentReceived".
func LookupKind(identifier string) (Kind, error) {
	if kind, ok := registry[strings.TrimSpace(identifier)]; ok {
		return kind, nil
	}
	return "", &UnknownKindError{Identifier: identifier}
}

// DecodePayload builds the payload of the kind identified by identifier from data.
// Keys are the payload's JSON field names; RFC 3339 strings are accepted for dates.
func DecodePayload(identifier string, data map[string]interface{}) (Payload, error) {
	kind, err := LookupKind(identifier)
	if err != nil {
		return nil, err
	}
	p := payloadConstructors[kind]()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           p,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating payload decoder")
	}
	if err = dec.Decode(data); err != nil {
		return nil, errors.Wrapf(err, "decoding %s payload", kind)
	}
	return p, nil
}
