package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core/authz"
)

const contextScopeKey = "scope"

// decideFunc asks the actor's Authorizer one question.
type decideFunc func(ctx context.Context, a authz.Authorizer) (authz.Decision, error)

var (
	manageLedger   decideFunc = func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) { return a.CanManageLedger(ctx) }
	viewLedger     decideFunc = func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) { return a.CanViewLedger(ctx) }
	manageFees     decideFunc = func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) { return a.CanManageFees(ctx) }
	managePayments decideFunc = func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) { return a.CanManagePayments(ctx) }
)

func markAttendance(batchID string) decideFunc {
	return func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) {
		return a.CanMarkAttendance(ctx, batchID)
	}
}

func viewStudent(studentID string) decideFunc {
	return func(ctx context.Context, a authz.Authorizer) (authz.Decision, error) {
		return a.CanViewStudent(ctx, studentID)
	}
}

// guard builds per-request Authorizers from the JWT claims.
type guard struct {
	batches authz.BatchLookup
}

func (g guard) authorizer(ctx echo.Context) (authz.Authorizer, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	role, err := authz.ParseRole(claims.Role, claims.SubjectID)
	if err != nil {
		return nil, authz.ErrForbidden
	}
	return authz.NewAuthorizer(role, g.batches), nil
}

// check fails with authz.ErrForbidden unless decide allows the request; the Decision's Scope is kept on ctx.
func (g guard) check(ctx echo.Context, decide decideFunc) (authz.Decision, error) {
	a, err := g.authorizer(ctx)
	if err != nil {
		return authz.Decision{}, err
	}
	d, err := decide(ctx.Request().Context(), a)
	if err != nil {
		return authz.Decision{}, errors.Wrap(err, "authorizing")
	}
	if !d.Allowed {
		return authz.Decision{}, authz.ErrForbidden
	}
	ctx.Set(contextScopeKey, d.Scope)
	return d, nil
}

// requires is check as a route middleware, for decisions that need nothing from the request body.
func (g guard) requires(decide func(ctx echo.Context) decideFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if _, err := g.check(ctx, decide(ctx)); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func static(decide decideFunc) func(echo.Context) decideFunc {
	return func(echo.Context) decideFunc { return decide }
}

// studentParam authorizes viewing the Student named by the `:id` path param.
func studentParam(ctx echo.Context) decideFunc {
	return viewStudent(ctx.Param("id"))
}

// contextScope returns the Scope the last check kept on ctx; nil means unrestricted.
func contextScope(ctx echo.Context) *authz.Scope {
	scope, _ := ctx.Get(contextScopeKey).(*authz.Scope)
	return scope
}
