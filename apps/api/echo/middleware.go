package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/ihub/core/user"
)

// staffMiddleware only lets active staff members through. The account is re-checked
// so that demoted staff are refused before their token expires.
func staffMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsStaff {
				return errHttpForbidden
			}
			usr, err := getContextUser(ctx, svc, claims)
			if err != nil {
				return err
			}
			if !usr.IsStaff {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
