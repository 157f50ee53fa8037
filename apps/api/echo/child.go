package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
)

const contextChildKey = "object"

var errChildNotFoundInCtx = errors.New("child object not found in echo.Context")

type childApi struct {
	svc      child.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerChildAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := childApi{
		svc:      deps.ChildSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/children", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())

	// detail endpoints
	dg := cg.Group("/:id", api.ctxChildMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("/status", api.overrideStatus, adminMiddleware())
	dg.POST("/qr-code", api.regenerateQRCode, adminMiddleware())
}

// Handlers

func (api *childApi) create(ctx echo.Context) error {
	var data child.NewChild
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChild")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering child")
	}
	return ctx.JSON(http.StatusCreated, c)
}

// query lists children; parents only see their own.
func (api *childApi) query(ctx echo.Context) error {
	filter := new(child.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []child.Child{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !(ctxUsr.IsAdmin() || ctxUsr.IsStaff()) {
		filter.ParentID = ctxUsr.ID
	}

	children, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying children")
	}
	if children == nil {
		children = []child.Child{}
	}
	return ctx.JSON(http.StatusOK, children)
}

func (api *childApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get(contextChildKey).(child.Child)
	if !ok {
		return errors.Wrap(errChildNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *childApi) overrideStatus(ctx echo.Context) error {
	c, ok := ctx.Get(contextChildKey).(child.Child)
	if !ok {
		return errors.Wrap(errChildNotFoundInCtx, "retrieving object from context")
	}

	var data child.StatusOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusOverride")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.OverrideStatus(ctx.Request().Context(), c.ID, data.Status)
	if err != nil {
		return errors.Wrap(err, "overriding status")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *childApi) regenerateQRCode(ctx echo.Context) error {
	c, ok := ctx.Get(contextChildKey).(child.Child)
	if !ok {
		return errors.Wrap(errChildNotFoundInCtx, "retrieving object from context")
	}

	c, err := api.svc.RegenerateQRCode(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "regenerating qr code")
	}
	return ctx.JSON(http.StatusOK, c)
}

// ctxChildMiddleware loads the child `:id` in the context.
// Parents get a 404 for children that are not theirs.
func (api *childApi) ctxChildMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == child.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding child by ID")
			}
			if !(ctxUsr.IsAdmin() || ctxUsr.IsStaff() || c.ParentID == ctxUsr.ID) {
				return errHttpNotFound
			}
			ctx.Set(contextChildKey, c)
			return next(ctx)
		}
	}
}
