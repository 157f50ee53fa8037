package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

const (
	msgValidationFailed = "validation failed"
	msgInvalidState     = "invalid state"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   core.ErrorKind    `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

var domainStatuses = map[core.ErrorKind]int{
	core.KindNotFound:     http.StatusNotFound,
	core.KindInvalidState: http.StatusBadRequest,
	core.KindForbidden:    http.StatusForbidden,
	core.KindUnauthorized: http.StatusUnauthorized,
	core.KindConflict:     http.StatusConflict,
	core.KindValidation:   http.StatusBadRequest,
}

func kindOfStatus(code int) core.ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return core.KindUnauthorized
	case code == http.StatusForbidden:
		return core.KindForbidden
	case code == http.StatusNotFound:
		return core.KindNotFound
	case code == http.StatusConflict:
		return core.KindConflict
	case code >= http.StatusInternalServerError:
		return core.KindInternalError
	default:
		return core.KindValidation
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code int
			resp ErrorResponse
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				origErr = echo.NewHTTPError(http.StatusUnauthorized, origErr.Message)
			} else if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			resp.Code = kindOfStatus(code)
			resp.Error = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			resp.Fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Fields[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			resp.Code = core.KindValidation
			resp.Error = msgValidationFailed
		case *core.ValidationError:
			if origErr.Fields != nil {
				resp.Fields = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Fields[fErr.Field] = fErr.Error
				}
			}
			resp.Error = origErr.Error()
			if resp.Error == "" {
				resp.Error = msgValidationFailed
			}
			code = http.StatusBadRequest
			resp.Code = core.KindValidation
		case *core.DomainError:
			code = domainStatuses[origErr.Kind]
			resp.Code = origErr.Kind
			resp.Error = origErr.Message
			if origErr.Kind == core.KindInvalidState {
				// unreachable with known statuses: report it
				logger.Error(fmt.Sprintf("%v", err), err, contextUser(ctx))
				resp.Error = msgInvalidState
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			resp.Code = core.KindInternalError
			resp.Error = http.StatusText(http.StatusInternalServerError)
			logger.Error(resp.Error, errors.WithStack(err), contextUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			resp.Error = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contextUser returns the authenticated user as known from the token claims.
func contextUser(ctx echo.Context) user.User {
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.Subject
		usr.Username = claims.Username
		usr.Email = claims.Email
	}
	return usr
}
