package tracking

import (
	"errors"
	"time"

	"github.com/edge-hybrid/location-tracker/internal/location"
	"github.com/edge-hybrid/location-tracker/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type fixRequest struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Timestamp int64    `json:"timestamp"`
	Error     string   `json:"error"`
}

// RegisterRoutes mounts the tracking API. push may be nil when fixes come
// from somewhere other than clients.
func RegisterRoutes(r fiber.Router, svc *Service, push *location.PushSource) {
	r.Get("/location", func(c *fiber.Ctx) error {
		p, err := svc.Locate(c.Context())
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/start", func(c *fiber.Ctx) error {
		state, err := svc.StartTracking(c.Context())
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(state)
	})

	r.Post("/stop", func(c *fiber.Ctx) error {
		return c.JSON(svc.StopTracking(c.Context()))
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		return c.JSON(svc.Snapshot())
	})

	r.Get("/summary", func(c *fiber.Ctx) error {
		return c.JSON(svc.Summary())
	})

	r.Post("/fixes", func(c *fiber.Ctx) error {
		if push == nil {
			return fiber.NewError(fiber.StatusConflict, "fixes are not accepted from clients")
		}
		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Error != "" {
			push.PushError(errors.New(req.Error))
			return c.SendStatus(fiber.StatusAccepted)
		}
		if req.Lat == nil || req.Lng == nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		if req.Timestamp == 0 {
			req.Timestamp = time.Now().UnixMilli()
		}
		push.Push(geo.Point{Lat: *req.Lat, Lng: *req.Lng, Timestamp: req.Timestamp})
		return c.SendStatus(fiber.StatusAccepted)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, location.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
