package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/payment"
	midtranssvc "github.com/trezcool/conservatoire/services/gateway/midtrans"
)

type paymentApi struct {
	svc     *payment.Service
	gateway *midtranssvc.Gateway
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *payment.Service, gw *midtranssvc.Gateway) {
	api := paymentApi{svc: svc, gateway: gw}
	payments := gd.requires(static(managePayments))

	pg := g.Group("/payments", jwt, payments)
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.GET("/:id/transactions", api.transactions)
	pg.POST("/:id/transactions", api.openTransaction)

	g.GET("/students/:id/payments", api.studentPayments, jwt, gd.requires(studentParam))

	// un-authed: the signature in the payload is checked instead
	g.POST("/gateway/midtrans", api.midtransNotification)
	g.POST("/gateway/updates", api.gatewayUpdate, jwt, payments)
}

// Handlers

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	p, err := api.svc.CreatePayment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := payment.QueryFilter{
		StudentID: core.CleanString(ctx.QueryParam("student")),
		Status:    core.CleanString(ctx.QueryParam("status"), true /* lower */),
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.ListPayments(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) studentPayments(ctx echo.Context) error {
	filter := payment.QueryFilter{
		StudentID: ctx.Param("id"),
		Status:    core.CleanString(ctx.QueryParam("status"), true /* lower */),
	}
	payments, err := api.svc.ListPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying student payments")
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) transactions(ctx echo.Context) error {
	txs, err := api.svc.Transactions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *paymentApi) openTransaction(ctx echo.Context) error {
	var data TransactionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransactionRequest")
	}
	tx, err := api.svc.OpenTransaction(ctx.Request().Context(), ctx.Param("id"), data.MerchantTransactionID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, tx)
}

func (api *paymentApi) gatewayUpdate(ctx echo.Context) error {
	var data payment.GatewayUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GatewayUpdate")
	}
	tx, applied, err := api.svc.ApplyGatewayUpdate(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, gatewayResponse(tx, applied))
}

// midtransNotification acknowledges every authentic notification with a 200, so Midtrans stops retrying
// reports that can never apply (unknown order, stale status).
func (api *paymentApi) midtransNotification(ctx echo.Context) error {
	raw, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading notification body")
	}
	n, err := api.gateway.Parse(raw)
	if err != nil {
		if errors.Cause(err) == midtranssvc.ErrInvalidSignature {
			return err
		}
		return core.NewValidationError(err)
	}

	upd, err := midtranssvc.ToGatewayUpdate(n, raw)
	if err != nil {
		return ctx.JSON(http.StatusOK, GatewayUpdateResponse{Status: "ignored", Reason: err.Error()})
	}
	tx, applied, err := api.svc.ApplyGatewayUpdate(ctx.Request().Context(), upd)
	if err != nil {
		if core.IsNotFound(err) || core.IsConflict(err) || core.IsInvalidState(err) {
			return ctx.JSON(http.StatusOK, GatewayUpdateResponse{Status: "ignored", Reason: errors.Cause(err).Error()})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, gatewayResponse(tx, applied))
}

func gatewayResponse(tx payment.Transaction, applied bool) GatewayUpdateResponse {
	status := "unchanged"
	if applied {
		status = "applied"
	}
	return GatewayUpdateResponse{Status: status, Transaction: &tx}
}
