package notification

import (
	"context"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/user"
)

// UserGetter looks recipients up.
type UserGetter interface {
	GetUserByID(ctx context.Context, id string) (user.User, error)
}

// Deliverer executes deliveries: it stores the record, mails the recipient
// and pushes the record to realtime subscribers.
type Deliverer struct {
	repo      Repository
	users     UserGetter
	mailer    core.EmailService
	publisher Publisher
}

// NewDeliverer returns a Deliverer; publisher is optional.
func NewDeliverer(repo Repository, users UserGetter, mailer core.EmailService, publisher Publisher) *Deliverer {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailer, "mailer"),
	).CheckAndPanic()

	return &Deliverer{repo: repo, users: users, mailer: mailer, publisher: publisher}
}

// Deliver is safe to retry: the record is only inserted once.
func (d *Deliverer) Deliver(ctx context.Context, dlv Delivery) error {
	n := dlv.Notification

	if dlv.Has(ChannelDatabase) {
		if err := d.repo.CreateNotification(ctx, n); err != nil {
			return &DeliveryError{Channel: ChannelDatabase, Err: err}
		}
	}

	if dlv.Has(ChannelMail) && dlv.Mail != nil {
		usr, err := d.users.GetUserByID(ctx, n.RecipientID)
		if err != nil {
			return &DeliveryError{Channel: ChannelMail, Err: errors.Wrap(err, "getting recipient")}
		}
		if usr.HasEmail() {
			msg := dlv.Mail.For(usr.Name).Message(mail.Address{Name: usr.Name, Address: usr.Email})
			if err = d.mailer.SendMessages(ctx, msg); err != nil {
				return &DeliveryError{Channel: ChannelMail, Err: err}
			}
		}
	}

	if d.publisher != nil && dlv.Has(ChannelDatabase) {
		d.publisher.Publish(n.RecipientID, n, dlv.Sound)
	}
	return nil
}
