package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core/roster"
)

type rosterApi struct {
	guard
	svc *roster.Service
}

func registerRosterAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *roster.Service) {
	api := rosterApi{guard: gd, svc: svc}
	ledger := gd.requires(static(manageLedger))

	sg := g.Group("/students", jwt)
	sg.POST("", api.createStudent, ledger)
	sg.GET("/:id", api.retrieveStudent, gd.requires(studentParam))
	sg.PUT("/:id/deactivate", api.deactivateStudent, ledger)

	bg := g.Group("/batches", jwt)
	bg.POST("", api.createBatch, ledger)
	bg.GET("/:id", api.retrieveBatch)
	bg.POST("/:id/enrollments", api.enroll, ledger)
}

// Handlers

func (api *rosterApi) createStudent(ctx echo.Context) error {
	var data roster.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	s, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *rosterApi) retrieveStudent(ctx echo.Context) error {
	s, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *rosterApi) deactivateStudent(ctx echo.Context) error {
	s, err := api.svc.DeactivateStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *rosterApi) createBatch(ctx echo.Context) error {
	var data roster.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	b, err := api.svc.CreateBatch(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *rosterApi) retrieveBatch(ctx echo.Context) error {
	b, err := api.svc.GetBatch(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *rosterApi) enroll(ctx echo.Context) error {
	var data struct {
		StudentID string `json:"student_id"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding enrollment")
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}
