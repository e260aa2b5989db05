package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
)

var errProjectNotFoundInCtx = errors.New("project object not found in echo.Context")

type projectApi struct {
	svc *project.Service
}

func registerProjectAPI(g *echo.Group, svc *project.Service) {
	api := projectApi{svc: svc}

	pg := g.Group("/projects")
	pg.POST("", api.create)
	pg.GET("", api.query)

	// detail endpoints
	dg := pg.Group("/:id", projectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.PUT("/buffers", api.changeBuffers)
	dg.POST("/phases", api.appendPhase)
	dg.DELETE("/phases", api.truncatePhases)
	dg.PUT("/phases/:index", api.editPhase)
	dg.GET("/phases/:index/minimum-start", api.minimumStart)
}

// projectMiddleware loads the project of the `:id` path param into the context.
func projectMiddleware(svc *project.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == project.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding project by ID")
			}
			ctx.Set("object", p)
			return next(ctx)
		}
	}
}

func ctxProject(ctx echo.Context) (project.Project, error) {
	p, ok := ctx.Get("object").(project.Project)
	if !ok {
		return project.Project{}, errors.Wrap(errProjectNotFoundInCtx, "retrieving object from context")
	}
	return p, nil
}

type (
	TruncateResponse struct {
		Project project.Project  `json:"project"`
		Removed []timeline.Phase `json:"removed"`
	}

	MinimumStartResponse struct {
		MinimumStart timeline.Instant `json:"minimum_start"`
	}
)

// Handlers

func (api *projectApi) create(ctx echo.Context) error {
	var data project.NewProject
	if err := bindAndValidate(ctx, &data, "NewProject"); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.Project{})
	}

	projects, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) update(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	var data project.UpdateProject
	if err := bindAndValidate(ctx, &data, "UpdateProject"); err != nil {
		return err
	}

	p, err = api.svc.Update(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), p.ID); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *projectApi) changeBuffers(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	var data project.UpdateBufferPolicy
	if err := bindAndValidate(ctx, &data, "UpdateBufferPolicy"); err != nil {
		return err
	}

	p, err = api.svc.ChangeBufferPolicy(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "changing buffer policy")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) editPhase(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	index, err := indexParam(ctx)
	if err != nil {
		return err
	}
	var data project.UpdatePhase
	if err := bindAndValidate(ctx, &data, "UpdatePhase"); err != nil {
		return err
	}

	p, err = api.svc.EditPhase(ctx.Request().Context(), p.ID, index, data)
	if err != nil {
		return errors.Wrap(err, "editing phase")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) appendPhase(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	var data project.NewPhase
	if err := bindAndValidate(ctx, &data, "NewPhase"); err != nil {
		return err
	}

	p, err = api.svc.AppendPhase(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "appending phase")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) truncatePhases(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	keep, err := strconv.Atoi(ctx.QueryParam("keep"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"keep": "keep must be a number"})
	}

	p, removed, err := api.svc.TruncatePhases(ctx.Request().Context(), p.ID, keep)
	if err != nil {
		return errors.Wrap(err, "truncating phases")
	}
	if removed == nil {
		removed = []timeline.Phase{}
	}
	return ctx.JSON(http.StatusOK, TruncateResponse{Project: p, Removed: removed})
}

func (api *projectApi) minimumStart(ctx echo.Context) error {
	p, err := ctxProject(ctx)
	if err != nil {
		return err
	}
	index, err := indexParam(ctx)
	if err != nil {
		return err
	}

	start, err := api.svc.MinimumStart(ctx.Request().Context(), p.ID, index)
	if err != nil {
		return errors.Wrap(err, "computing minimum start")
	}
	return ctx.JSON(http.StatusOK, MinimumStartResponse{MinimumStart: timeline.NewInstant(start)})
}
