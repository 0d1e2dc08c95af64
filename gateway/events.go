package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/strokeworks/vectorflow/service/event"
)

// handleEvents serves the per-run SSE stream: a heartbeat first, then every
// published event of the run until the client disconnects.
func (s *Service) handleEvents(c echo.Context) error {
	runID := c.Param("runId")
	// seeding on first access keeps stream and snapshot semantics aligned
	if _, err := s.engine.Snapshot(c.Request().Context(), runID); err != nil {
		return respondError(c, err, nil)
	}

	response := c.Response()
	response.Header().Set(echo.HeaderContentType, "text/event-stream")
	response.Header().Set("Cache-Control", "no-cache")
	response.Header().Set("Connection", "keep-alive")
	response.WriteHeader(http.StatusOK)
	response.Flush()

	stream := event.OpenStream(s.bus, runID, s.heartbeat, 64)
	defer stream.Close()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-stream.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(response, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return nil
			}
			response.Flush()
		}
	}
}
