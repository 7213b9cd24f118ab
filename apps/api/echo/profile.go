package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/profile"
	"github.com/trezcool/ihub/core/user"
)

type profileApi struct {
	svc    profile.Service
	usrSvc user.Service
	conf   *core.Config
}

func registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := profileApi{
		svc:    opts.ProfileSvc,
		usrSvc: opts.UserSvc,
		conf:   opts.Conf,
	}

	mg := g.Group("/me", jwt)
	mg.GET("/profile", api.retrieveOwn)
	mg.PUT("/profile", api.updateOwn)
	mg.POST("/avatar", api.uploadAvatar)

	g.GET("/users/:id/profile", api.retrieve, jwt)
}

func (api *profileApi) retrieveOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *profileApi) updateOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data profile.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	view, err := api.svc.Update(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *profileApi) uploadAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	f, filename, err := formFile(ctx, "avatar", api.conf.Storage.MaxUploadSize)
	if err != nil {
		return err
	}
	defer f.Close()

	view, err := api.svc.SetAvatar(ctx.Request().Context(), usr, f, filename)
	if err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	return ctx.JSON(http.StatusOK, view)
}

// retrieve shows the profile of any active user.
func (api *profileApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := api.usrSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return errHttpNotFound
	}
	view, err := api.svc.Get(reqCtx, usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, view)
}
