package history

import (
	"loankeeper/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the audit logs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the history routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/history")
	group.Get("/loans", h.HandleListLoanHistory)
	group.Get("/reservations", h.HandleListReservationHistory)
	group.Get("/users", h.HandleListUserHistory)
}

func queryFromCtx(c *fiber.Ctx) Query {
	return Query{
		EntityID: c.Query("entityId"),
		Action:   c.Query("action"),
		Page:     c.QueryInt("page", 1),
		Size:     c.QueryInt("size", 50),
	}
}

// HandleListLoanHistory lists loan audit entries.
// @Summary List loan history
// @Tags history
// @Produce json
// @Param entityId query string false "Filter by loan ID"
// @Param action query string false "Filter by action"
// @Success 200 {object} map[string]any
// @Router /history/loans [get]
func (h *Handler) HandleListLoanHistory(c *fiber.Ctx) error {
	rows, total, err := h.service.ListLoanHistory(c.Context(), queryFromCtx(c))
	if err != nil {
		l := logger.WithRayID(h.service.logger, c)
		l.Error("Loan history listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"entries": rows, "total": total})
}

// HandleListReservationHistory lists reservation audit entries.
// @Summary List reservation history
// @Tags history
// @Produce json
// @Param entityId query string false "Filter by reservation ID"
// @Param action query string false "Filter by action"
// @Success 200 {object} map[string]any
// @Router /history/reservations [get]
func (h *Handler) HandleListReservationHistory(c *fiber.Ctx) error {
	rows, total, err := h.service.ListReservationHistory(c.Context(), queryFromCtx(c))
	if err != nil {
		l := logger.WithRayID(h.service.logger, c)
		l.Error("Reservation history listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"entries": rows, "total": total})
}

// HandleListUserHistory lists user action audit entries.
// @Summary List user action history
// @Tags history
// @Produce json
// @Param entityId query string false "Filter by user ID"
// @Param action query string false "Filter by action"
// @Success 200 {object} map[string]any
// @Router /history/users [get]
func (h *Handler) HandleListUserHistory(c *fiber.Ctx) error {
	rows, total, err := h.service.ListUserHistory(c.Context(), queryFromCtx(c))
	if err != nil {
		l := logger.WithRayID(h.service.logger, c)
		l.Error("User history listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"entries": rows, "total": total})
}
