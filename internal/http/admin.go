package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmehdipour/subhub/internal/repository"
	"github.com/jmehdipour/subhub/internal/service/sweep"
	echo "github.com/labstack/echo/v4"
)

type sweepRequest struct {
	HoursBack int `json:"hours_back"`
}

func sweepHandler(s Sweeper, defaultHours int) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := sweepRequest{HoursBack: defaultHours}
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&req); err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
			}
		}
		if req.HoursBack <= 0 || req.HoursBack > 24*30 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "hours_back must be between 1 and 720"})
		}

		st, err := s.Sweep(c.Request().Context(), req.HoursBack)
		if errors.Is(err, sweep.ErrSweepInProgress) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "sweep already running"})
		}
		if err != nil {
			c.Logger().Errorf("sweep failed: %v", err)
			return c.JSON(http.StatusBadGateway, map[string]any{"error": "sweep failed", "stats": st})
		}
		return c.JSON(http.StatusOK, map[string]any{"hours_back": req.HoursBack, "stats": st})
	}
}

func ledgerHandler(l repository.DeliveryLedger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("event_id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "event_id required"})
		}
		rec, err := l.Get(c.Request().Context(), id)
		if err != nil {
			c.Logger().Errorf("ledger get failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if rec == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no ledger record"})
		}
		return c.JSON(http.StatusOK, rec)
	}
}
