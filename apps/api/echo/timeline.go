package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cadence/core/preset"
	"github.com/trezcool/cadence/core/project"
	"github.com/trezcool/cadence/core/timeline"
)

type (
	timelineApi struct {
		svc *project.Service
	}

	presetApi struct {
		catalog preset.Catalog
	}

	TimelineResponse struct {
		Phases           []timeline.Phase  `json:"phases"`
		EvaluationWindow timeline.Window   `json:"evaluation_window"`
		DueDate          *timeline.Instant `json:"due_date,omitempty"`
	}

	ValidEditResponse struct {
		Valid bool `json:"valid"`
	}
)

func newTimelineResponse(phases []timeline.Phase) TimelineResponse {
	if phases == nil {
		phases = []timeline.Phase{}
	}
	return TimelineResponse{Phases: phases, EvaluationWindow: timeline.ProjectEvaluationWindow(phases)}
}

// registerTimelineAPI adds the stateless endpoints used while a timeline is being drafted.
func registerTimelineAPI(g *echo.Group, svc *project.Service) {
	api := timelineApi{svc: svc}

	tg := g.Group("/timelines")
	tg.POST("/auto-set", api.autoSet)
	tg.POST("/preset", api.preset)
	tg.POST("/validate-edit", api.validateEdit)
	tg.POST("/propagate", api.propagate)
}

func (api *timelineApi) autoSet(ctx echo.Context) error {
	var data project.AutoSetRequest
	if err := bindAndValidate(ctx, &data, "AutoSetRequest"); err != nil {
		return err
	}

	phases, err := api.svc.PreviewAutoSet(data)
	if err != nil {
		return errors.Wrap(err, "allocating phases")
	}
	return ctx.JSON(http.StatusOK, newTimelineResponse(phases))
}

func (api *timelineApi) preset(ctx echo.Context) error {
	var data project.PresetRequest
	if err := bindAndValidate(ctx, &data, "PresetRequest"); err != nil {
		return err
	}

	res, err := api.svc.PreviewPreset(data)
	if err != nil {
		return errors.Wrap(err, "applying preset")
	}
	resp := newTimelineResponse(res.Phases)
	due := timeline.NewInstant(res.Due)
	resp.DueDate = &due
	return ctx.JSON(http.StatusOK, resp)
}

func (api *timelineApi) validateEdit(ctx echo.Context) error {
	var data project.ValidateEditRequest
	if err := bindAndValidate(ctx, &data, "ValidateEditRequest"); err != nil {
		return err
	}

	if err := api.svc.ValidateEdit(data); err != nil {
		return errors.Wrap(err, "validating edit")
	}
	return ctx.JSON(http.StatusOK, ValidEditResponse{Valid: true})
}

func (api *timelineApi) propagate(ctx echo.Context) error {
	var data project.PropagateRequest
	if err := bindAndValidate(ctx, &data, "PropagateRequest"); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newTimelineResponse(api.svc.Propagate(data)))
}

func registerPresetAPI(g *echo.Group, catalog preset.Catalog) {
	api := presetApi{catalog: catalog}

	cg := g.Group("/courses")
	cg.GET("", api.courses)
	cg.GET("/:code/presets", api.presets)
}

func (api *presetApi) courses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.catalog.Courses())
}

func (api *presetApi) presets(ctx echo.Context) error {
	presets, err := api.catalog.ForCourse(ctx.Param("code"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, presets)
}
