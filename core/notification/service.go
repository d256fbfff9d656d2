package notification

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-notifications/core"
)

var (
	NowFunc = time.Now

	// OrderingFields are the fields notifications can be sorted by.
	OrderingFields = map[string]bool{"created_at": true, "read_at": true, "type": true, "title": true, "id": true}
	DefaultOrdering = []core.DBOrdering{{Field: "created_at"}}

	maxParallelSends = 8
)

type (
	Deps struct {
		Conf       *core.Config
		Repo       Repository
		Users      UserGetter
		Queue      Queue
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
	}

	// Service dispatches notifications and manages their lifecycle.
	// Dispatch failures are logged and returned as error values; they never panic.
	Service struct {
		repo        Repository
		users       UserGetter
		queue       Queue
		builder     *Builder
		translator  ut.Translator
		logger      core.Logger
		pageSize    int
		maxPageSize int
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "conf"),
		vala.IsNotNil(deps.Repo, "repo"),
		vala.IsNotNil(deps.Users, "users"),
		vala.IsNotNil(deps.Queue, "queue"),
		vala.IsNotNil(deps.Validate, "validate"),
		vala.IsNotNil(deps.Logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:        deps.Repo,
		users:       deps.Users,
		queue:       deps.Queue,
		builder:     NewBuilder(deps.Validate, deps.Translator, deps.Conf),
		translator:  deps.Translator,
		logger:      deps.Logger,
		pageSize:    deps.Conf.Notifications.PageSize,
		maxPageSize: deps.Conf.Notifications.MaxPageSize,
	}
}

func now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

func kindOf(p Payload) string {
	if p == nil {
		return ""
	}
	return string(p.Kind())
}

func (svc *Service) logFailure(msg string, kind, recipientID string, err error) {
	svc.logger.Error(msg, err, map[string]interface{}{
		"kind":         kind,
		"recipient_id": recipientID,
		"error":        err.Error(),
	})
}

// SendToOne builds p for the recipient and enqueues its delivery.
func (svc *Service) SendToOne(ctx context.Context, recipientID string, p Payload) error {
	if err := svc.dispatch(ctx, recipientID, p); err != nil {
		svc.logFailure("sending notification failed", kindOf(p), recipientID, err)
		return err
	}
	return nil
}

// SendToMany fans p out to the recipients in parallel and returns how many were dispatched.
// The returned error wraps the failure of the first failing recipient, in recipientIDs order.
func (svc *Service) SendToMany(ctx context.Context, recipientIDs []string, p Payload) (int, error) {
	ids := make([]string, 0, len(recipientIDs))
	seen := make(map[string]bool, len(recipientIDs))
	for _, id := range recipientIDs {
		id = core.CleanString(id)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			errs[i] = svc.SendToOne(ctx, id, p)
			return errs[i]
		})
	}
	_ = g.Wait() // every recipient is attempted; failures are counted below

	var (
		failed   int
		firstErr error
	)
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return len(ids) - failed, errors.Wrapf(firstErr, "%d of %d notifications failed", failed, len(ids))
	}
	return len(ids), nil
}

// SendBulk sends the kind identified by kindIdentifier (tag or display name) built from data.
// Nothing is sent when the kind is unknown.
func (svc *Service) SendBulk(ctx context.Context, kindIdentifier string, recipientIDs []string, data map[string]interface{}) error {
	p, err := DecodePayload(kindIdentifier, data)
	if err != nil {
		if !IsUnknownKind(err) {
			err = core.NewValidationError(err)
		}
		for _, id := range recipientIDs {
			svc.logFailure("sending bulk notification failed", kindIdentifier, id, err)
		}
		return err
	}
	_, err = svc.SendToMany(ctx, recipientIDs, p)
	return err
}

func (svc *Service) SendWelcome(ctx context.Context, recipientID string, p Welcome) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) SendEventReminder(ctx context.Context, recipientID string, p EventReminder) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) SendPaymentReceived(ctx context.Context, recipientID string, p PaymentReceived) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) SendAssignmentDue(ctx context.Context, recipientID string, p AssignmentDue) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) SendSystemMaintenance(ctx context.Context, recipientID string, p SystemMaintenance) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) SendNewMessage(ctx context.Context, recipientID string, p NewMessage) error {
	return svc.SendToOne(ctx, recipientID, p)
}

func (svc *Service) dispatch(ctx context.Context, recipientID string, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if recipientID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "recipient_id", Error: "this field is required"})
	}
	if _, err = svc.users.GetUserByID(ctx, recipientID); err != nil {
		return errors.Wrap(err, "getting recipient")
	}

	p = CleanPayload(p)
	data, m, err := svc.builder.Build(p)
	if err != nil {
		return err
	}

	t := now()
	pol := ResolveDelivery(p, t)
	if !pol.ShouldSend {
		svc.logger.Info("notification skipped by delivery policy", map[string]interface{}{
			"kind":         kindOf(p),
			"recipient_id": recipientID,
		})
		return nil
	}

	summary := data.Summary()
	dlv := Delivery{
		Notification: Notification{
			ID:          uuid.New().String(),
			RecipientID: recipientID,
			Type:        p.Kind(),
			Data:        data,
			Title:       summary.Title,
			Message:     summary.Message,
			CreatedAt:   t,
			DeliverAt:   pol.DelayUntil,
		},
		Channels: pol.Channels,
		RunAt:    pol.DelayUntil,
		Sound:    pol.Sound,
	}
	if pol.Has(ChannelMail) {
		dlv.Mail = &m
	}

	if err = svc.queue.Enqueue(ctx, dlv); err != nil {
		if !IsDeliveryError(err) {
			err = &DeliveryError{Err: err}
		}
		return err
	}
	return nil
}

// lifecycle

// logUnexpected logs errors other than not found & validation errors.
func (svc *Service) logUnexpected(op, recipientID string, err error) {
	cause := errors.Cause(err)
	if cause == ErrNotFound || core.IsValidationError(err) {
		return
	}
	svc.logger.Error(op+" failed", err, map[string]interface{}{
		"recipient_id": recipientID,
		"error":        err.Error(),
	})
}

func (svc *Service) Get(ctx context.Context, recipientID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, recipientID, id)
	if err != nil {
		svc.logUnexpected("getting notification", recipientID, err)
	}
	return n, err
}

// MarkAsRead is a no-op on a notification already read.
func (svc *Service) MarkAsRead(ctx context.Context, recipientID, id string) error {
	err := svc.markOne(ctx, recipientID, id, func() (int, error) {
		return svc.repo.MarkAsRead(ctx, recipientID, []string{id}, now())
	})
	if err != nil {
		svc.logUnexpected("marking notification as read", recipientID, err)
	}
	return err
}

// MarkAsUnread is a no-op on an unread notification.
func (svc *Service) MarkAsUnread(ctx context.Context, recipientID, id string) error {
	err := svc.markOne(ctx, recipientID, id, func() (int, error) {
		return svc.repo.MarkAsUnread(ctx, recipientID, []string{id})
	})
	if err != nil {
		svc.logUnexpected("marking notification as unread", recipientID, err)
	}
	return err
}

// markOne tells apart a no-op transition from a missing notification.
func (svc *Service) markOne(ctx context.Context, recipientID, id string, mark func() (int, error)) error {
	count, err := mark()
	if err != nil {
		return err
	}
	if count == 0 {
		_, err = svc.repo.GetNotification(ctx, recipientID, id)
		return err
	}
	return nil
}

func (svc *Service) Delete(ctx context.Context, recipientID, id string) error {
	count, err := svc.repo.DeleteNotifications(ctx, recipientID, []string{id})
	if err != nil {
		svc.logUnexpected("deleting notification", recipientID, err)
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *Service) BulkMarkAsRead(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count, err := svc.repo.MarkAsRead(ctx, recipientID, ids, now())
	if err != nil {
		svc.logUnexpected("marking notifications as read", recipientID, err)
	}
	return count, err
}

func (svc *Service) BulkMarkAsUnread(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count, err := svc.repo.MarkAsUnread(ctx, recipientID, ids)
	if err != nil {
		svc.logUnexpected("marking notifications as unread", recipientID, err)
	}
	return count, err
}

func (svc *Service) BulkDelete(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	count, err := svc.repo.DeleteNotifications(ctx, recipientID, ids)
	if err != nil {
		svc.logUnexpected("deleting notifications", recipientID, err)
	}
	return count, err
}

func (svc *Service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	count, err := svc.repo.MarkAllAsRead(ctx, recipientID, now())
	if err != nil {
		svc.logUnexpected("marking all notifications as read", recipientID, err)
	}
	return count, err
}

// DeleteOldRead deletes the recipient's notifications read more than olderThanDays days ago.
func (svc *Service) DeleteOldRead(ctx context.Context, recipientID string, olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "older_than_days", Error: "must be 0 or greater"})
	}
	cutoff := now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	count, err := svc.repo.DeleteReadBefore(ctx, recipientID, cutoff)
	if err != nil {
		svc.logUnexpected("deleting old notifications", recipientID, err)
	}
	return count, err
}

// CleanupAll applies DeleteOldRead to every recipient. A failing recipient is logged
// and counted, the sweep goes on.
func (svc *Service) CleanupAll(ctx context.Context, olderThanDays int) (CleanupResult, error) {
	var res CleanupResult
	if olderThanDays < 0 {
		return res, core.NewValidationError(nil, core.FieldError{Field: "older_than_days", Error: "must be 0 or greater"})
	}

	ids, err := svc.repo.RecipientIDs(ctx)
	if err != nil {
		svc.logUnexpected("listing notification recipients", "", err)
		return res, err
	}

	for _, id := range ids {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		count, err := svc.DeleteOldRead(ctx, id, olderThanDays)
		if err != nil {
			res.Failed++
			continue
		}
		res.ProcessedRecipients++
		res.TotalDeleted += count
	}

	svc.logger.Info("notifications cleanup done", map[string]interface{}{
		"older_than_days":      olderThanDays,
		"processed_recipients": res.ProcessedRecipients,
		"total_deleted":        res.TotalDeleted,
		"failed":               res.Failed,
	})
	return res, nil
}

func (svc *Service) Stats(ctx context.Context, recipientID string) (Stats, error) {
	stats, err := svc.repo.Stats(ctx, recipientID, NewStatsWindows(now()))
	if err != nil {
		svc.logUnexpected("computing notification stats", recipientID, err)
	}
	return stats, err
}

func (svc *Service) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := svc.repo.CountUnread(ctx, recipientID)
	if err != nil {
		svc.logUnexpected("counting unread notifications", recipientID, err)
	}
	return count, err
}

// Query returns a page of the recipient's notifications, newest first unless ordering says otherwise.
func (svc *Service) Query(
	ctx context.Context,
	recipientID string,
	filter QueryFilter,
	ordering []core.DBOrdering,
	page core.PageRequest,
) (Page, error) {
	filter.Clean()
	filter, err := validateQuery(filter, ordering)
	if err != nil {
		return Page{}, err
	}
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	page = page.Clean(svc.pageSize, svc.maxPageSize)

	results, total, err := svc.repo.QueryNotifications(ctx, recipientID, filter, ordering, page)
	if err != nil {
		svc.logUnexpected("querying notifications", recipientID, err)
		return Page{}, err
	}
	if results == nil {
		results = make([]Notification, 0)
	}
	return Page{
		Results:    results,
		Count:      total,
		Page:       page.Page,
		PageSize:   page.Size,
		TotalPages: page.TotalPages(total),
	}, nil
}

// validateQuery returns filter with Type resolved to a kind tag.
func validateQuery(filter QueryFilter, ordering []core.DBOrdering) (QueryFilter, error) {
	var flds []core.FieldError
	if filter.Type != "" {
		if kind, err := LookupKind(filter.Type); err != nil {
			flds = append(flds, core.FieldError{Field: "type", Error: "unknown notification type"})
		} else {
			filter.Type = string(kind)
		}
	}
	if filter.Status != "" && filter.Status != StatusRead && filter.Status != StatusUnread {
		flds = append(flds, core.FieldError{Field: "status", Error: "must be one of: read, unread"})
	}
	for _, ord := range ordering {
		if !OrderingFields[ord.Field] {
			flds = append(flds, core.FieldError{Field: "ordering", Error: fmt.Sprintf("cannot order by %q", ord.Field)})
			break
		}
	}
	if len(flds) > 0 {
		return filter, core.NewValidationError(errors.New("invalid query"), flds...)
	}
	return filter, nil
}
