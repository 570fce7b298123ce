package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/conservatoire/core/accounting"
)

type accountingApi struct {
	facade *accounting.Facade
}

func registerAccountingAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, facade *accounting.Facade) {
	api := accountingApi{facade: facade}
	viewer := gd.requires(studentParam)

	g.GET("/students/:id/can-attend", api.canAttend, jwt, viewer)
	g.GET("/students/:id/balance", api.balance, jwt, viewer)
	g.GET("/students/:id/statement", api.statement, jwt, viewer)
}

// Handlers

func (api *accountingApi) canAttend(ctx echo.Context) error {
	batchID, err := requireQuery(ctx, "batch")
	if err != nil {
		return err
	}
	ok, err := api.facade.CanAttend(ctx.Request().Context(), ctx.Param("id"), batchID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CanAttendResponse{CanAttend: ok})
}

func (api *accountingApi) balance(ctx echo.Context) error {
	studentID := ctx.Param("id")
	outstanding, err := api.facade.OutstandingBalance(ctx.Request().Context(), studentID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, BalanceResponse{StudentID: studentID, Outstanding: outstanding.StringFixed(2)})
}

func (api *accountingApi) statement(ctx echo.Context) error {
	st, err := api.facade.Statement(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}
