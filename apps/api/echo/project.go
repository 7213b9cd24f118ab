package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
)

type projectApi struct {
	svc    project.Service
	usrSvc user.Service
	conf   *core.Config
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := projectApi{
		svc:    opts.ProjectSvc,
		usrSvc: opts.UserSvc,
		conf:   opts.Conf,
	}

	// public endpoints
	g.GET("/gallery", api.gallery)
	g.GET("/projects/:id", api.retrieve)
	g.POST("/projects/:id/like", api.like)

	// owner endpoints
	g.GET("/me/projects", api.queryOwn, jwt)
	g.POST("/projects", api.create, jwt)
	g.PUT("/projects/:id", api.update, jwt)
	g.DELETE("/projects/:id", api.destroy, jwt)
	g.POST("/projects/:id/screenshot", api.uploadScreenshot, jwt)
}

func (api *projectApi) gallery(ctx echo.Context) error {
	page, err := api.svc.Gallery(ctx.Request().Context(), ctx.QueryParam("q"), bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying gallery")
	}
	return ctx.JSON(http.StatusOK, page)
}

// retrieve shows an approved project and counts the view.
func (api *projectApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.View(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "viewing project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) like(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Like(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "liking project")
	}
	return ctx.JSON(http.StatusOK, LikeResponse{ID: p.ID, Likes: p.Likes})
}

func (api *projectApi) queryOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	projects, err := api.svc.ListByOwner(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing own projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	p, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	var data project.NewProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	p, err := api.svc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) uploadScreenshot(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	id, err := paramID(ctx)
	if err != nil {
		return err
	}

	f, filename, err := formFile(ctx, "screenshot", api.conf.Storage.MaxUploadSize)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := api.svc.SetScreenshot(ctx.Request().Context(), usr, id, f, filename)
	if err != nil {
		return errors.Wrap(err, "setting screenshot")
	}
	return ctx.JSON(http.StatusOK, p)
}

type LikeResponse struct {
	ID    int64 `json:"id"`
	Likes int   `json:"likes"`
}
