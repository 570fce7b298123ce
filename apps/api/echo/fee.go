package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *fee.Service) {
	api := feeApi{svc: svc}

	g.POST("/batches/:id/fees", api.addEntry, jwt, gd.requires(static(manageFees)))
	g.GET("/batches/:id/fees", api.schedule, jwt)
	g.GET("/batches/:id/fees/current", api.current, jwt)
}

// Handlers

func (api *feeApi) addEntry(ctx echo.Context) error {
	var data fee.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	data.BatchID = ctx.Param("id")
	e, err := api.svc.AddEntry(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *feeApi) schedule(ctx echo.Context) error {
	entries, err := api.svc.Schedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *feeApi) current(ctx echo.Context) error {
	asOf, err := bindDate(ctx, "as_of")
	if err != nil {
		return err
	}
	if asOf.IsZero() {
		asOf = core.NowFunc()
	}
	asOf = core.Date(asOf)

	batchID := ctx.Param("id")
	amount, ok, err := api.svc.CurrentFee(ctx.Request().Context(), batchID, asOf)
	if err != nil {
		return err
	}
	resp := FeeResponse{BatchID: batchID, AsOf: asOf.Format("2006-01-02"), Found: ok}
	if ok {
		resp.Amount = amount.StringFixed(2)
	}
	return ctx.JSON(http.StatusOK, resp)
}
