package http

import (
	"io"
	"net/http"

	"github.com/jmehdipour/subhub/internal/payments"
	"github.com/jmehdipour/subhub/internal/projector"
	echo "github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// stripeWebhookHandler verifies the signature and hands the event to intake.
// Destination delivery failures never change the response; only transient
// projection and ledger faults return 5xx so the provider redelivers.
func stripeWebhookHandler(secret string, limit int64, in Intake, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, limit+1))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "read body failed"})
		}
		if int64(len(body)) > limit {
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		}

		sev, err := webhook.ConstructEventWithOptions(body, c.Request().Header.Get("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			log.Warn("webhook signature verification failed", zap.Error(err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		}

		ev, err := payments.FromStripe(&sev)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid event"})
		}

		res, err := in.Accept(c.Request().Context(), ev)
		if err != nil {
			if projector.IsPermanent(err) {
				log.Error("webhook event rejected", zap.String("event_id", ev.ID), zap.Error(err))
				return c.JSON(http.StatusOK, map[string]string{"status": "rejected", "event_id": ev.ID})
			}
			log.Error("webhook event failed", zap.String("event_id", ev.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		}

		return c.JSON(http.StatusOK, map[string]string{"status": string(res.Outcome), "event_id": ev.ID})
	}
}
