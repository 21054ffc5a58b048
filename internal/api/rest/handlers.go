package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oshokin/temperature-monitor/internal/domain/reading"
	"github.com/oshokin/temperature-monitor/internal/logger"
	"github.com/oshokin/temperature-monitor/internal/repository/readings"
)

// naiveLayout is accepted for timestamps without an offset, read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// errInvalidTime is returned for timestamps in neither accepted layout.
var errInvalidTime = errors.New("invalid time format")

// ReadingResponse is one reading on the wire.
type ReadingResponse struct {
	Temperature float64   `json:"temperature"`
	CollectedAt time.Time `json:"collected_at"`
}

// LatestResponse is the newest reading with its threshold flags.
type LatestResponse struct {
	ReadingResponse

	IsAlert  bool `json:"is_alert"`
	IsNormal bool `json:"is_normal"`
}

// Handler serves the query endpoints.
type Handler struct {
	query Querier
	now   func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(q Querier, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}

	return &Handler{query: q, now: now}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// Latest returns the newest reading or 404 when nothing is stored.
func (h *Handler) Latest(c *gin.Context) {
	ctx := c.Request.Context()

	r, err := h.query.Latest(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to get latest reading", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get latest reading"})

		return
	}

	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No temperature readings available"})

		return
	}

	flags := h.query.Classify(r.Value)

	c.JSON(http.StatusOK, LatestResponse{
		ReadingResponse: toResponse(*r),
		IsAlert:         flags.IsAlert,
		IsNormal:        flags.IsNormal,
	})
}

// History returns readings between start_time and end_time, newest first.
func (h *Handler) History(c *gin.Context) {
	ctx := c.Request.Context()

	start, err := parseTimeParam(c, "start_time")
	if err != nil {
		writeTimeError(c, "start_time")

		return
	}

	end, err := parseTimeParam(c, "end_time")
	if err != nil {
		writeTimeError(c, "end_time")

		return
	}

	rows, err := h.query.History(ctx, start, end)
	if err != nil {
		h.writeQueryError(c, err)

		return
	}

	c.JSON(http.StatusOK, toResponses(rows))
}

// Hourly returns the readings of the last hour, newest first.
func (h *Handler) Hourly(c *gin.Context) {
	rows, err := h.query.Hourly(c.Request.Context())
	if err != nil {
		h.writeQueryError(c, err)

		return
	}

	c.JSON(http.StatusOK, toResponses(rows))
}

func (h *Handler) writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, readings.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be before end_time"})
	case errors.Is(err, reading.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.ErrorKV(c.Request.Context(), "Failed to fetch readings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch readings"})
	}
}

func writeTimeError(c *gin.Context, name string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": fmt.Sprintf("Invalid %s format. Use ISO format (e.g., 2024-03-14T12:00:00Z)", name),
	})
}

// parseTimeParam returns nil when the parameter is absent.
func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil //nolint:nilnil // Absent parameter selects the default bound.
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.ParseInLocation(naiveLayout, raw, time.UTC)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidTime, name)
	}

	t = t.UTC()

	return &t, nil
}

func toResponse(r reading.Reading) ReadingResponse {
	return ReadingResponse{
		Temperature: r.Value,
		CollectedAt: r.CapturedAt.UTC(),
	}
}

func toResponses(rows []reading.Reading) []ReadingResponse {
	out := make([]ReadingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, toResponse(r))
	}

	return out
}
