package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ihub/core/audit"
	"github.com/trezcool/ihub/core/project"
	"github.com/trezcool/ihub/core/user"
)

const exportFilename = "projects_export.csv"

// adminApi serves the staff panel: the review queue, project management and the audit trail.
type adminApi struct {
	projectSvc project.Service
	auditSvc   audit.Service
	usrSvc     user.Service
}

func registerAdminAPI(staff *echo.Group, opts *Options) {
	api := adminApi{
		projectSvc: opts.ProjectSvc,
		auditSvc:   opts.AuditSvc,
		usrSvc:     opts.UserSvc,
	}

	staff.GET("/dashboard", api.dashboard)
	staff.GET("/approvals", api.pendingQueue)
	staff.POST("/approvals/:id", api.review)
	staff.GET("/audit-logs", api.auditLogs)

	pg := staff.Group("/projects")
	pg.GET("", api.queryProjects)
	pg.POST("/bulk-action", api.bulkAction)
	pg.GET("/export", api.exportProjects)
	pg.GET("/:id", api.retrieveProject)
	pg.PUT("/:id", api.updateProject)
	pg.DELETE("/:id", api.destroyProject)
}

func (api *adminApi) dashboard(ctx echo.Context) error {
	stats, err := api.projectSvc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) pendingQueue(ctx echo.Context) error {
	page, err := api.projectSvc.PendingQueue(ctx.Request().Context(), ctx.QueryParam("q"), bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying pending projects")
	}
	return ctx.JSON(http.StatusOK, page)
}

// review approves or rejects one project. A failed owner notification does not fail the request;
// it is reported in the `warning` field instead.
func (api *adminApi) review(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data ReviewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewRequest")
	}
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	tr, err := api.projectSvc.ApproveOrReject(ctx.Request().Context(), actor, id, data.Action)
	if err != nil {
		return errors.Wrap(err, "reviewing project")
	}
	resp := ReviewResponse{Transition: tr}
	if tr.NotifyErr != nil {
		resp.Warning = "Project updated, but email failed: " + tr.NotifyErr.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *adminApi) bulkAction(ctx echo.Context) error {
	var data BulkActionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkActionRequest")
	}
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	res, err := api.projectSvc.BulkApproveOrReject(ctx.Request().Context(), actor, data.ProjectIDs, data.Action)
	if err != nil {
		return errors.Wrap(err, "reviewing projects")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) queryProjects(ctx echo.Context) error {
	var filter project.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	page, err := api.projectSvc.Query(ctx.Request().Context(), filter, ordering.Orderings, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *adminApi) exportProjects(ctx echo.Context) error {
	var buf bytes.Buffer
	if _, err := api.projectSvc.ExportCSV(ctx.Request().Context(), &buf); err != nil {
		return errors.Wrap(err, "exporting projects")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportFilename+`"`)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (api *adminApi) retrieveProject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.projectSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) updateProject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data project.AdminUpdateProject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminUpdateProject")
	}
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	p, err := api.projectSvc.AdminUpdate(ctx.Request().Context(), actor, id, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *adminApi) destroyProject(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.projectSvc.AdminDelete(ctx.Request().Context(), actor, id); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) auditLogs(ctx echo.Context) error {
	var filter audit.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	page, err := api.auditSvc.Query(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying audit logs")
	}
	return ctx.JSON(http.StatusOK, page)
}

type (
	ReviewRequest struct {
		Action string `json:"action"`
	}

	ReviewResponse struct {
		project.Transition
		Warning string `json:"warning,omitempty"`
	}

	BulkActionRequest struct {
		ProjectIDs []int64 `json:"project_ids"`
		Action     string  `json:"action"`
	}
)
