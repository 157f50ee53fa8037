package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/notification"
)

type notificationApi struct {
	svc      notification.ServiceInterface
	hub      *notification.Hub
	logger   core.Logger
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{
		svc:      deps.NotificationSvc,
		hub:      deps.Hub,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	ng := g.Group("/notifications")

	// browsers cannot set headers on websocket handshakes
	ng.GET("/live", api.live, middleware.JWTWithConfig(jwtConfig(deps.Conf, "query:token")), adminMiddleware())

	ag := ng.Group("", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.GET("/unread-count", api.unreadCount)
	ag.POST("/read", api.markRead)
	ag.POST("/read-all", api.markAllRead)
	ag.DELETE("", api.clear)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	var filter notification.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filter.RecipientID = claims.Subject
	filter.ChildID = core.CleanString(filter.ChildID, true /* lower */)

	notifications, err := api.svc.QueryForRecipient(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifications == nil {
		notifications = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifications)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	var data notification.MarkReadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkReadRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), claims.Subject, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "marking notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking all notifications as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) clear(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.Clear(ctx.Request().Context(), claims.Subject); err != nil {
		return errors.Wrap(err, "clearing notifications")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CountResponse struct {
	Count int `json:"count"`
}
