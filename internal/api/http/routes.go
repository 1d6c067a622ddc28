package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/turfcast/track-conditions/internal/collector"
	"github.com/turfcast/track-conditions/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, st store.Store, col *collector.Collector) {
	v1 := app.Group("/api/v1")

	v1.Get("/conditions/:raceID", func(c *fiber.Ctx) error {
		req := raceParams{RaceID: c.Params("raceID")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := st.Get(c.Context(), req.RaceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather record for requested race")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather record")
		}

		return c.JSON(rec)
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		summary, ok := col.LastSummary()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no collection pass has completed yet")
		}
		return c.JSON(summary)
	})
}

// raceParams holds path parameters identifying a race.
type raceParams struct {
	RaceID string `validate:"required,min=1,max=128"`
}
