package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/waddlebot/core/pkg/envelope"
	"github.com/waddlebot/core/pkg/session"
)

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("api: invalid timestamp %q: %w", s, err)
	}
	return ts, nil
}

// postEventHandler implements POST /api/v1/router/events.
func (s *Server) postEventHandler(c *echo.Context) error {
	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	env, err := req.toEnvelope()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result := s.router.ProcessEvent(c.Request().Context(), env)
	s.metrics.record(result)

	return c.JSON(http.StatusOK, toEventResponse(result))
}

// postBatchHandler implements POST /api/v1/router/events/batch.
func (s *Server) postBatchHandler(c *echo.Context) error {
	var req BatchEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	parseErrs := make([]error, len(req.Events))
	var toProcess []*envelope.Envelope
	var validAt []int
	for i, e := range req.Events {
		env, err := e.toEnvelope()
		if err != nil {
			parseErrs[i] = err
			continue
		}
		toProcess = append(toProcess, env)
		validAt = append(validAt, i)
	}

	results, err := s.router.ProcessBatch(c.Request().Context(), toProcess)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out := make([]EventResponse, len(req.Events))
	for i, parseErr := range parseErrs {
		if parseErr != nil {
			out[i] = EventResponse{Success: false, Error: parseErr.Error()}
		}
	}
	for resultIdx, origIdx := range validAt {
		r := results[resultIdx]
		s.metrics.record(r)
		out[origIdx] = toEventResponse(r)
	}

	return c.JSON(http.StatusOK, out)
}

// postResponseHandler implements POST /api/v1/router/responses: the module
// callback for an async-dispatched command, per spec.md §4.2 step 9 ("the
// router records success/failure and, if the response action is chat,
// schedules a send via the appropriate action pusher").
//
// The callback carries only session_id/execution_id, not the (entity_id,
// user_id) pair the router's session store is keyed by, so correlation goes
// through session.Manager.GetByID — the secondary index the router's
// synchronous path doesn't need because it already holds the envelope.
func (s *Server) postResponseHandler(c *echo.Context) error {
	var req ResponseCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	if s.sessions == nil {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}

	sess, err := s.sessions.GetByID(c.Request().Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown or expired session_id")
		}
		return mapRepoError(err)
	}

	if req.Success && req.ResponseAction == "chat" && s.actions != nil {
		message, _ := req.ResponseData["message"].(string)
		if err := s.actions.PushChatReply(c.Request().Context(), sess.EntityID, sess.UserID, message); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "schedule chat reply: "+err.Error())
		}
	}

	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// listCommandsHandler implements GET /api/v1/router/commands.
func (s *Server) listCommandsHandler(c *echo.Context) error {
	commands, err := s.commands.ListActive(c.Request().Context())
	if err != nil {
		return mapRepoError(err)
	}

	out := make([]CommandResponse, len(commands))
	for i, cmd := range commands {
		out[i] = CommandResponse{
			ID:           cmd.ID,
			Command:      cmd.Command,
			Prefix:       cmd.Prefix,
			Description:  cmd.Description,
			Transport:    string(cmd.Transport),
			TriggerType:  string(cmd.TriggerType),
			AuthRequired: cmd.AuthRequired,
			IsActive:     cmd.IsActive,
		}
	}
	return c.JSON(http.StatusOK, out)
}

// metricsHandler implements GET /api/v1/router/metrics.
func (s *Server) metricsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.snapshot())
}
