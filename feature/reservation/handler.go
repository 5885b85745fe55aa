package reservation

import (
	"loankeeper/core/fault"
	"loankeeper/core/logger"
	"loankeeper/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for reservations.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the reservation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/reservations")
	group.Post("/", h.HandleCreate)
	group.Get("/", h.HandleList)
	group.Delete("/:id", h.HandleCancel)
	group.Post("/sweep", h.HandleSweep)
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	code := fault.Status(err)
	if code == fiber.StatusInternalServerError {
		l := logger.WithRayID(h.service.logger, c)
		l.Error(msg, zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// HandleCreate books an item for a user.
// @Summary Create reservation
// @Tags reservations
// @Accept json
// @Produce json
// @Param reservation body CreateInput true "Booking request"
// @Success 201 {object} models.Reservation
// @Failure 400 {object} map[string]string "End not after start"
// @Failure 409 {object} map[string]string "Overlapping reservation"
// @Router /reservations [post]
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	res, err := h.service.Create(c.Context(), in, auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "Reservation failed")
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleList returns a page of reservations.
// @Summary List reservations
// @Tags reservations
// @Produce json
// @Param item query string false "Item ID"
// @Param user query string false "User ID"
// @Success 200 {object} map[string]any
// @Router /reservations [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	reservations, total, err := h.service.List(c.Context(), Query{
		ItemID: c.Query("item"),
		UserID: c.Query("user"),
		Page:   c.QueryInt("page", 1),
		Size:   c.QueryInt("size", 20),
	})
	if err != nil {
		return h.fail(c, err, "Reservation listing failed")
	}
	return c.JSON(fiber.Map{"reservations": reservations, "total": total})
}

// HandleCancel removes a booking.
// @Summary Cancel reservation
// @Tags reservations
// @Param id path string true "Reservation ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /reservations/{id} [delete]
func (h *Handler) HandleCancel(c *fiber.Ctx) error {
	if err := h.service.Cancel(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
		return h.fail(c, err, "Reservation cancel failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleSweep expires overdue reservations on demand.
// @Summary Sweep expired reservations
// @Tags reservations
// @Produce json
// @Success 200 {object} map[string]int
// @Router /reservations/sweep [post]
func (h *Handler) HandleSweep(c *fiber.Ctx) error {
	count, err := h.service.SweepExpired(c.Context(), h.service.now())
	if err != nil {
		return h.fail(c, err, "Reservation sweep failed")
	}
	return c.JSON(fiber.Map{"swept": count})
}
