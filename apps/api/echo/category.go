package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core/category"
	"github.com/trezcool/ihub/core/user"
)

type categoryApi struct {
	svc      category.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerCategoryAPI(g, staff *echo.Group, opts *Options) {
	api := categoryApi{
		svc:      opts.CategorySvc,
		usrSvc:   opts.UserSvc,
		validate: opts.Validate,
	}

	g.GET("/categories", api.query)

	sg := staff.Group("/categories")
	sg.POST("", api.create)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)
}

func (api *categoryApi) query(ctx echo.Context) error {
	cats, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	if cats == nil {
		cats = []category.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *categoryApi) create(ctx echo.Context) error {
	var data category.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	c, err := api.svc.Create(reqCtx, actor, data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *categoryApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	orig, err := api.svc.Get(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "getting category")
	}

	var data category.NewCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err = data.Validate(reqCtx, api.validate, api.svc, orig); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	c, err := api.svc.Rename(reqCtx, actor, id, data)
	if err != nil {
		return errors.Wrap(err, "renaming category")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *categoryApi) destroy(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}
