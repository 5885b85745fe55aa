package loan

import (
	"loankeeper/core/fault"
	"loankeeper/core/logger"
	"loankeeper/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for loans.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the loan routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/loans")
	group.Post("/", h.HandleBorrow)
	group.Get("/", h.HandleList)
	group.Post("/:id/return", h.HandleReturn)
	group.Post("/repair/:itemId", h.HandleRepairItem)
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	code := fault.Status(err)
	if code == fiber.StatusInternalServerError {
		l := logger.WithRayID(h.service.logger, c)
		l.Error(msg, zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// HandleBorrow records a new loan.
// @Summary Borrow an item
// @Tags loans
// @Accept json
// @Produce json
// @Param loan body BorrowInput true "Borrow request"
// @Success 201 {object} models.Loan
// @Failure 409 {object} map[string]string "Item already on loan"
// @Router /loans [post]
func (h *Handler) HandleBorrow(c *fiber.Ctx) error {
	var in BorrowInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	loan, err := h.service.Borrow(c.Context(), in, auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "Borrow failed")
	}
	return c.Status(fiber.StatusCreated).JSON(loan)
}

// HandleReturn closes a loan. Repeating the call is harmless.
// @Summary Return a loan
// @Tags loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} models.Loan
// @Failure 404 {object} map[string]string
// @Router /loans/{id}/return [post]
func (h *Handler) HandleReturn(c *fiber.Ctx) error {
	loan, err := h.service.Return(c.Context(), c.Params("id"), auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "Return failed")
	}
	return c.JSON(loan)
}

// HandleList returns a page of loans.
// @Summary List loans
// @Tags loans
// @Produce json
// @Param user query string false "Borrower ID"
// @Param item query string false "Item ID"
// @Param filter query string false "open|returned|overdue"
// @Success 200 {object} map[string]any
// @Router /loans [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	loans, total, err := h.service.List(c.Context(), Query{
		UserID: c.Query("user"),
		ItemID: c.Query("item"),
		Filter: c.Query("filter"),
		Page:   c.QueryInt("page", 1),
		Size:   c.QueryInt("size", 20),
	})
	if err != nil {
		return h.fail(c, err, "Loan listing failed")
	}
	return c.JSON(fiber.Map{"loans": loans, "total": total})
}

// HandleRepairItem reconciles one item's loan and status records.
// @Summary Repair an item's loan state
// @Tags loans
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} status.Plan
// @Failure 404 {object} map[string]string
// @Router /loans/repair/{itemId} [post]
func (h *Handler) HandleRepairItem(c *fiber.Ctx) error {
	plan, err := h.service.RepairItem(c.Context(), c.Params("itemId"))
	if err != nil {
		return h.fail(c, err, "Item repair failed")
	}
	return c.JSON(plan)
}
