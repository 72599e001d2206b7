package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-postboard/internal/services"
)

// DailyBreakdown godoc
// @ID          commentsDailyBreakdown
// @Summary     Comment counts over a date range
// @Description Counts comments created in [date_from, date_to), in total, blocked, and per UTC day.
// @Description Dates are YYYY-MM-DD (midnight UTC) or RFC3339.
// @Tags        Stats
// @Produce     json
// @Security    BearerAuth
// @Param       date_from  query  string  true  "Inclusive start"  example(2025-01-01)
// @Param       date_to    query  string  true  "Exclusive end"    example(2025-01-08)
// @Success     200  {object}  repo.Breakdown
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /comments-daily-breakdown [get]
func (h *Handlers) DailyBreakdown(c *gin.Context) {
	from, err := parseDate(c.Query("date_from"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date_from: "+err.Error())
		return
	}
	to, err := parseDate(c.Query("date_to"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date_to: "+err.Error())
		return
	}

	b, err := h.stats.DailyBreakdown(c.Request.Context(), from, to)
	switch {
	case err == nil:
		ok(c, http.StatusOK, b)
	case errors.Is(err, services.ErrInvalidRange):
		fail(c, http.StatusBadRequest, ErrCodeInvalidRange, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute breakdown")
	}
}

var errDateFormat = errors.New("expected YYYY-MM-DD or RFC3339")

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errDateFormat
}
