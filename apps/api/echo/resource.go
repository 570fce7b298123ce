package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/resource"
)

type resourceApi struct {
	svc *resource.Service
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *resource.Service) {
	api := resourceApi{svc: svc}
	ledger := gd.requires(static(manageLedger))

	rg := g.Group("/resources", jwt)
	rg.POST("", api.create, ledger)
	rg.POST("/:id/assignments", api.assign, ledger)

	g.GET("/students/:id/resources", api.studentResources, jwt, gd.requires(studentParam))
}

// Handlers

func (api *resourceApi) create(ctx echo.Context) error {
	var data resource.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	data.CreatedBy = claims.Subject
	r, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *resourceApi) assign(ctx echo.Context) error {
	var data AssignRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRequest")
	}
	target, err := resource.ParseAssignableRef(data.Target)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "target", Error: err.Error()})
	}
	a, err := api.svc.Assign(ctx.Request().Context(), ctx.Param("id"), target)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *resourceApi) studentResources(ctx echo.Context) error {
	resources, err := api.svc.ForStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resources)
}
