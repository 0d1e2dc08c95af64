// Package gateway exposes the engine over HTTP: phase actions, snapshot
// and artifact reads, run reset and a per-run SSE event stream.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/strokeworks/vectorflow/model/run"
	"github.com/strokeworks/vectorflow/policy"
	"github.com/strokeworks/vectorflow/service/engine"
	"github.com/strokeworks/vectorflow/service/event"
)

// Service is the HTTP gateway over one engine and its event bus.
type Service struct {
	engine    *engine.Service
	bus       *event.Service
	echo      *echo.Echo
	heartbeat time.Duration
}

// Option customises the gateway.
type Option func(s *Service)

// WithHeartbeatInterval overrides the SSE heartbeat cadence.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(s *Service) { s.heartbeat = interval }
}

// New creates the gateway and registers its routes.
func New(eng *engine.Service, bus *event.Service, options ...Option) *Service {
	s := &Service{
		engine:    eng,
		bus:       bus,
		echo:      echo.New(),
		heartbeat: event.DefaultHeartbeatInterval,
	}
	for _, opt := range options {
		opt(s)
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.routes()
	return s
}

func (s *Service) routes() {
	api := s.echo.Group("/api")
	api.POST("/runs/:runId/phases/:phaseId/actions/:action", s.handleAction)
	api.GET("/runs/:runId", s.handleSnapshot)
	api.POST("/runs/:runId/reset", s.handleReset)
	api.GET("/runs/:runId/phases/:phaseId/artifacts", s.handleArtifacts)
	api.GET("/runs/:runId/events", s.handleEvents)
	s.echo.GET("/healthz", s.handleHealth)
}

// Handler returns the underlying HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.echo
}

// Start serves until the listener fails or Shutdown is called.
func (s *Service) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// actionBody is the JSON body of a phase action request. Declaring the
// action in the body is optional; when present it must agree with the
// endpoint.
type actionBody struct {
	Action       string                 `json:"action,omitempty"`
	ActorID      string                 `json:"actorId"`
	Reason       string                 `json:"reason,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	ApprovalMode string                 `json:"approvalMode,omitempty"`
}

func (s *Service) handleAction(c echo.Context) error {
	endpointAction, ok := run.ParseAction(c.Param("action") + "_PHASE")
	if !ok {
		err := run.Validationf("unknown action endpoint %q", c.Param("action"))
		return respondError(c, err, nil)
	}

	body := &actionBody{}
	if err := c.Bind(body); err != nil {
		return respondError(c, run.Validationf("malformed request body: %v", err), nil)
	}
	if body.Action != "" {
		declared, ok := run.ParseAction(body.Action)
		if !ok || declared != endpointAction {
			err := run.Validationf("declared action %q does not match endpoint %s", body.Action, endpointAction)
			return respondError(c, err, nil)
		}
	}

	ctx := c.Request().Context()
	if body.ApprovalMode != "" {
		ctx = policy.WithPolicy(ctx, &policy.Policy{Mode: body.ApprovalMode})
	}
	response, err := s.engine.ApplyAction(ctx, &run.Request{
		Action:  endpointAction,
		RunID:   c.Param("runId"),
		PhaseID: c.Param("phaseId"),
		ActorID: body.ActorID,
		Reason:  body.Reason,
		Payload: body.Payload,
	})
	if err != nil {
		return respondError(c, err, response)
	}
	return c.JSON(http.StatusOK, response)
}

func (s *Service) handleSnapshot(c echo.Context) error {
	snapshot, err := s.engine.Snapshot(c.Request().Context(), c.Param("runId"))
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Service) handleReset(c echo.Context) error {
	actorID := c.QueryParam("actorId")
	fresh, err := s.engine.ResetRun(c.Request().Context(), c.Param("runId"), actorID)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(http.StatusOK, fresh)
}

func (s *Service) handleArtifacts(c echo.Context) error {
	latestOnly := c.QueryParam("latest") == "true"
	artifacts, err := s.engine.ListArtifacts(
		c.Request().Context(), c.Param("runId"), c.Param("phaseId"), latestOnly)
	if err != nil {
		return respondError(c, err, nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runId":     c.Param("runId"),
		"phaseId":   c.Param("phaseId"),
		"artifacts": artifacts,
	})
}

func (s *Service) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func respondError(c echo.Context, err error, response *run.Response) error {
	problem := newProblem(err, response)
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(problem.Status, problem)
}
