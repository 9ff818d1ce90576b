package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/embassy-watch/embassy-eye/models"
	"github.com/embassy-watch/embassy-eye/store"
)

// Runs returns a handler for GET /api/v1/runs.
//
// Query parameters: days (default 7), limit (default 100), embassy,
// location.
func Runs(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, ok := intQuery(c, "days", 7)
		if !ok {
			return
		}
		limit, ok := intQuery(c, "limit", 100)
		if !ok {
			return
		}

		runs, err := st.RecentRuns(store.RunFilter{
			Embassy:  c.Query("embassy"),
			Location: c.Query("location"),
			Days:     days,
			Limit:    limit,
		})
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.RunsResponse{Runs: runs, Total: len(runs)})
	}
}

// BlockedIPs returns a handler for GET /api/v1/blocked-ips.
//
// Query parameters: hours (default 24), limit (default 100).
func BlockedIPs(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		hours, ok := intQuery(c, "hours", 24)
		if !ok {
			return
		}
		limit, ok := intQuery(c, "limit", 100)
		if !ok {
			return
		}

		blocked, err := st.RecentBlockedIPs(time.Duration(hours)*time.Hour, limit)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.BlockedIPsResponse{Blocked: blocked, Total: len(blocked)})
	}
}

// Summary returns a handler for GET /api/v1/summary.
//
// Query parameters: days (default 7), embassy.
func Summary(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, ok := intQuery(c, "days", 7)
		if !ok {
			return
		}

		counts, err := st.OutcomeSummary(days, c.Query("embassy"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SummaryResponse{
			Since:    time.Now().UTC().AddDate(0, 0, -days),
			Outcomes: counts,
		})
	}
}

// intQuery parses a positive integer query parameter. On a malformed
// value it writes a 400 and reports false.
func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: "query parameter " + name + " must be a positive integer",
			},
		})
		return 0, false
	}
	return v, true
}

func respondStoreError(c *gin.Context, err error) {
	var ce *models.CheckError
	if errors.As(err, &ce) {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: ce.ToDetail()})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeStore,
			Message: err.Error(),
		},
	})
}
