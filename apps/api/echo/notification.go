package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	"github.com/trezcool/masomo-notifications/services/realtime"
)

type (
	notificationApiDeps struct {
		conf       *core.Config
		svc        *notification.Service
		users      *user.Service
		hub        *realtime.Hub
		validate   *validator.Validate
		translator ut.Translator
	}

	notificationApi struct {
		notificationApiDeps
	}
)

func registerNotificationAPI(g *echo.Group, jwt, wsJWT echo.MiddlewareFunc, deps notificationApiDeps) {
	api := notificationApi{deps}

	ng := g.Group("/notifications")

	// the websocket handshake cannot carry headers: the token is passed as query param
	ng.GET("/ws", api.stream, wsJWT)

	// authed endpoints
	ag := ng.Group("", jwt)
	ag.GET("", api.query)
	ag.DELETE("", api.destroyMultiple)
	ag.GET("/stats", api.stats)
	ag.GET("/unread-count", api.unreadCount)
	ag.POST("/read", api.markMultipleAsRead)
	ag.POST("/unread", api.markMultipleAsUnread)
	ag.POST("/read-all", api.markAllAsRead)
	ag.DELETE("/read", api.destroyOldRead)

	// detail endpoints
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id/read", api.markAsRead)
	ag.PUT("/:id/unread", api.markAsUnread)
	ag.DELETE("/:id", api.destroy)

	// admin endpoints
	adm := g.Group("/admin/notifications", jwt, adminMiddleware())
	adm.POST("/send", api.send)
	adm.POST("/cleanup", api.cleanup)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}

	var filter notification.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var page core.PageRequest
	if err = ctx.Bind(&page); err != nil {
		return errors.Wrap(err, "binding to PageRequest")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	res, err := api.svc.Query(ctx.Request().Context(), recipientID, filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *notificationApi) stats(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), recipientID)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), recipientID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) retrieve(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.Get(ctx.Request().Context(), recipientID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting notification")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAsRead(ctx echo.Context) error {
	return api.markOne(ctx, api.svc.MarkAsRead)
}

func (api *notificationApi) markAsUnread(ctx echo.Context) error {
	return api.markOne(ctx, api.svc.MarkAsUnread)
}

// markOne applies mark to the notification & returns its new state.
func (api *notificationApi) markOne(ctx echo.Context, mark func(context.Context, string, string) error) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	reqCtx := ctx.Request().Context()
	if err = mark(reqCtx, recipientID, id); err != nil {
		return errors.Wrap(err, "marking notification")
	}
	n, err := api.svc.Get(reqCtx, recipientID, id)
	if err != nil {
		return errors.Wrap(err, "getting notification")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markMultipleAsRead(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.BulkMarkAsRead)
}

func (api *notificationApi) markMultipleAsUnread(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.BulkMarkAsUnread)
}

func (api *notificationApi) bulk(ctx echo.Context, op func(context.Context, string, []string) (int, error)) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	var data IDsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	count, err := op(ctx.Request().Context(), recipientID, data.IDs)
	if err != nil {
		return errors.Wrap(err, "updating notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) markAllAsRead(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.MarkAllRead(ctx.Request().Context(), recipientID)
	if err != nil {
		return errors.Wrap(err, "marking all notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), recipientID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) destroyMultiple(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.BulkDelete(ctx.Request().Context(), recipientID, bindIDs(ctx))
	if err != nil {
		return errors.Wrap(err, "deleting notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *notificationApi) destroyOldRead(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	days, err := bindOlderThanDays(ctx, api.conf.Notifications.RetentionDays)
	if err != nil {
		return err
	}
	count, err := api.svc.DeleteOldRead(ctx.Request().Context(), recipientID, days)
	if err != nil {
		return errors.Wrap(err, "deleting old notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

// stream pushes the recipient's new notifications until the client disconnects.
func (api *notificationApi) stream(ctx echo.Context) error {
	recipientID, err := getRecipientID(ctx)
	if err != nil {
		return err
	}
	if _, err = api.users.GetByID(ctx.Request().Context(), recipientID); err != nil {
		return errors.Wrap(err, "getting recipient")
	}
	if err = api.hub.Serve(ctx.Response(), ctx.Request(), recipientID); err != nil {
		if core.IsShutdown(err) {
			return err
		}
		return &echo.HTTPError{Code: http.StatusBadRequest, Message: "websocket upgrade failed", Internal: err}
	}
	return nil
}

var errNoRecipients = core.NewValidationError(
	errors.New("no recipients"),
	core.FieldError{Field: "roles", Error: "no active recipient has any of these roles"},
)

func (api *notificationApi) send(ctx echo.Context) error {
	var data SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	recipientIDs, err := api.users.RecipientIDs(ctx.Request().Context(), data.Recipients, data.Roles)
	if err != nil {
		return errors.Wrap(err, "resolving recipients")
	}
	if len(recipientIDs) == 0 {
		return errNoRecipients
	}

	err = api.svc.SendBulk(ctx.Request().Context(), data.Kind, recipientIDs, data.Data)
	if err != nil {
		if core.IsValidationError(err) || notification.IsUnknownKind(err) {
			return err
		}
		// failures are logged by the service; the sent ones are not rolled back
		return ctx.JSON(http.StatusAccepted, SendResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusAccepted, SendResponse{Success: "notifications sent"})
}

func (api *notificationApi) cleanup(ctx echo.Context) error {
	var data CleanupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CleanupRequest")
	}
	days := api.conf.Notifications.RetentionDays
	if data.OlderThanDays != nil {
		days = *data.OlderThanDays
	}

	res, err := api.svc.CleanupAll(ctx.Request().Context(), days)
	if err != nil {
		return errors.Wrap(err, "cleaning notifications up")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	IDsRequest struct {
		IDs []string `json:"ids"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	SendRequest struct {
		Kind       string                 `json:"kind" validate:"required,notblank"`
		Recipients []string               `json:"recipients" validate:"required_without=Roles,dive,required"`
		Roles      []string               `json:"roles" validate:"required_without=Recipients,allroles"`
		Data       map[string]interface{} `json:"data"`
	}

	SendResponse struct {
		Success string `json:"success,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	CleanupRequest struct {
		OlderThanDays *int `json:"older_than_days"`
	}
)

func (sr *SendRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	sr.Kind = core.CleanString(sr.Kind)
	if err := validate.Struct(sr); err != nil {
		return core.NewValidationErrorFrom(err, translator)
	}
	return nil
}
