package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core/attendance"
)

type attendanceApi struct {
	guard
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd guard, svc *attendance.Service) {
	api := attendanceApi{guard: gd, svc: svc}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.schedule)
	sg.PUT("/:id/status", api.transition)
	sg.PUT("/:id/attendance", api.mark)
	sg.GET("/:id/attendance", api.records)
	sg.GET("/:id/attendance-rate", api.sessionRate)

	g.GET("/batches/:id/sessions", api.batchSessions, jwt, gd.requires(func(ctx echo.Context) decideFunc {
		return markAttendance(ctx.Param("id"))
	}))
	g.GET("/students/:id/attendance-rate", api.studentRate, jwt, gd.requires(studentParam))
}

// sessionForBatchStaff loads the Session named by `:id` once the actor may mark attendance in its batch.
func (api *attendanceApi) sessionForBatchStaff(ctx echo.Context) (attendance.Session, error) {
	s, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return attendance.Session{}, err
	}
	if _, err = api.check(ctx, markAttendance(s.BatchID)); err != nil {
		return attendance.Session{}, err
	}
	return s, nil
}

// Handlers

func (api *attendanceApi) schedule(ctx echo.Context) error {
	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if data.BatchID != "" {
		if _, err := api.check(ctx, markAttendance(data.BatchID)); err != nil {
			return err
		}
	}
	s, err := api.svc.ScheduleSession(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *attendanceApi) transition(ctx echo.Context) error {
	s, err := api.sessionForBatchStaff(ctx)
	if err != nil {
		return err
	}
	var data StatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	if s, err = api.svc.TransitionSession(ctx.Request().Context(), s.ID, data.Status); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	s, err := api.sessionForBatchStaff(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data MarkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	rec, err := api.svc.Mark(ctx.Request().Context(), attendance.MarkRequest{
		SessionID: s.ID,
		StudentID: data.StudentID,
		Status:    data.Status,
		MarkedBy:  claims.Subject,
		Notes:     data.Notes,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) records(ctx echo.Context) error {
	s, err := api.sessionForBatchStaff(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.SessionRecords(ctx.Request().Context(), s.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) sessionRate(ctx echo.Context) error {
	s, err := api.sessionForBatchStaff(ctx)
	if err != nil {
		return err
	}
	pct, err := api.svc.SessionPercentage(ctx.Request().Context(), s.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RateResponse{Percentage: pct.StringFixed(2)})
}

func (api *attendanceApi) studentRate(ctx echo.Context) error {
	pct, err := api.svc.StudentPercentage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RateResponse{Percentage: pct.StringFixed(2)})
}

func (api *attendanceApi) batchSessions(ctx echo.Context) error {
	sessions, err := api.svc.BatchSessions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessions)
}
