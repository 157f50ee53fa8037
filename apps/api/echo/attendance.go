package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core/attendance"
)

type attendanceApi struct {
	svc      attendance.ServiceInterface
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{
		svc:      deps.AttendanceSvc,
		validate: deps.Validate,
	}

	// any authenticated user; the service checks the actor against the child
	g.POST("/pickup", api.pickup, jwt)

	ag := g.Group("/attendance", jwt, staffMiddleware())
	ag.POST("/scan", api.scan)
	ag.GET("", api.query)
	ag.GET("/today", api.today)
}

// Handlers

func (api *attendanceApi) scan(ctx echo.Context) error {
	var data attendance.ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.ProcessScan(ctx.Request().Context(), data.Token, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "processing scan")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) pickup(ctx echo.Context) error {
	var data attendance.PickupRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PickupRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.RegisterPickup(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "registering pickup")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	filter.Clean()
	filter.DateFrom = bindDate(ctx, "date_from")
	filter.DateTo = bindDate(ctx, "date_to")
	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.svc.QueryRecords(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) today(ctx echo.Context) error {
	summaries, err := api.svc.Today(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting today's attendance")
	}
	if summaries == nil {
		summaries = []attendance.DaySummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}
