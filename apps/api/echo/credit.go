package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/credit"
)

type creditApi struct {
	guard
	svc *credit.Service
}

func registerCreditAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *credit.Service) {
	api := creditApi{guard: gd, svc: svc}

	cg := g.Group("/credits", jwt)
	cg.GET("", api.query, gd.requires(static(viewLedger)))
	cg.POST("", api.grant, gd.requires(static(manageLedger)))
	cg.POST("/:id/consume", api.consume)
	cg.POST("/:id/refund", api.refund)

	g.GET("/students/:id/credits", api.studentCredits, jwt, gd.requires(studentParam))
	g.POST("/students/:id/credits/consume", api.consumeForBatch, jwt)
}

// Handlers

// query lists entries matching `?student=&batch=`, within the actor's scope.
func (api *creditApi) query(ctx echo.Context) error {
	filter := credit.QueryFilter{
		StudentID: core.CleanString(ctx.QueryParam("student")),
		BatchID:   core.CleanString(ctx.QueryParam("batch")),
	}
	if scope := contextScope(ctx); scope != nil {
		filter.StudentIDs = scope.StudentIDs
		filter.TeacherID = scope.TeacherID
	}
	entries, err := api.svc.ListEntries(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *creditApi) grant(ctx echo.Context) error {
	var data credit.NewGrant
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrant")
	}
	e, err := api.svc.Grant(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

// entryForAttendance loads the entry named by `:id` once the actor may mark attendance in its batch.
func (api *creditApi) entryForAttendance(ctx echo.Context) (credit.Entry, error) {
	e, err := api.svc.GetEntry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return credit.Entry{}, err
	}
	if _, err = api.check(ctx, markAttendance(e.BatchID)); err != nil {
		return credit.Entry{}, err
	}
	return e, nil
}

func (api *creditApi) consume(ctx echo.Context) error {
	e, err := api.entryForAttendance(ctx)
	if err != nil {
		return err
	}
	ok, err := api.svc.Consume(ctx.Request().Context(), e.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ConsumeResponse{Consumed: ok, EntryID: e.ID})
}

func (api *creditApi) refund(ctx echo.Context) error {
	e, err := api.entryForAttendance(ctx)
	if err != nil {
		return err
	}
	ok, err := api.svc.Refund(ctx.Request().Context(), e.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RefundResponse{Refunded: ok})
}

func (api *creditApi) studentCredits(ctx echo.Context) error {
	filter := credit.QueryFilter{
		StudentID: ctx.Param("id"),
		BatchID:   core.CleanString(ctx.QueryParam("batch")),
	}
	entries, err := api.svc.ListEntries(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CreditsResponse{
		Remaining: credit.RemainingOf(entries, core.NowFunc()),
		Entries:   entries,
	})
}

func (api *creditApi) consumeForBatch(ctx echo.Context) error {
	batchID, err := requireQuery(ctx, "batch")
	if err != nil {
		return err
	}
	if _, err = api.check(ctx, markAttendance(batchID)); err != nil {
		return err
	}
	e, ok, err := api.svc.ConsumeForBatch(ctx.Request().Context(), ctx.Param("id"), batchID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ConsumeResponse{Consumed: ok, EntryID: e.ID})
}
