package notification

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a notification does not exist or is not owned by the recipient.
var ErrNotFound = errors.New("notification not found")

// UnknownKindError is returned when a kind identifier does not resolve to a known Kind.
type UnknownKindError struct {
	Identifier string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown notification kind %q", e.Identifier)
}

// DeliveryError is returned when a channel collaborator (store, mailer) fails.
type DeliveryError struct {
	Channel Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Channel == "" {
		return "delivering notification: " + e.Err.Error()
	}
	return fmt.Sprintf("delivering notification via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func IsUnknownKind(err error) bool {
	_, ok := errors.Cause(err).(*UnknownKindError)
	return ok
}

func IsDeliveryError(err error) bool {
	_, ok := errors.Cause(err).(*DeliveryError)
	return ok
}
