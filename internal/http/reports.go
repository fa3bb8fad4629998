package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/subhub/internal/model"
	"github.com/jmehdipour/subhub/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listDeliveriesHandler(chRepo repository.CHAttemptsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		f := repository.AttemptFilter{Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}

		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			st := model.AttemptStatus(raw)
			if !st.Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
			}
			f.Status = st
		}
		if raw := strings.TrimSpace(c.QueryParam("destination")); raw != "" {
			if !model.Destination(raw).Valid() {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid destination"})
			}
			f.Destination = raw
		}
		f.EventID = strings.TrimSpace(c.QueryParam("event_id"))

		rows, err := chRepo.List(c.Request().Context(), f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
