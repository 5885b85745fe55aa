package inventory

import (
	"loankeeper/core/fault"
	"loankeeper/core/logger"
	"loankeeper/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the catalog.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the item routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/items")
	group.Post("/", h.HandleCreate)
	group.Get("/", h.HandleList)
	group.Get("/:id", h.HandleGet)
	group.Put("/:id", h.HandleUpdate)
	group.Delete("/:id", h.HandleDelete)
	group.Put("/:id/photo", h.HandleUploadPhoto)
	group.Get("/:id/photo", h.HandleGetPhoto)
	group.Delete("/:id/photo", h.HandleDeletePhoto)
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	code := fault.Status(err)
	if code == fiber.StatusInternalServerError {
		l := logger.WithRayID(h.service.logger, c)
		l.Error(msg, zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// HandleCreate adds a catalog item.
// @Summary Create item
// @Tags items
// @Accept json
// @Produce json
// @Param item body CreateInput true "New item"
// @Success 201 {object} models.Item
// @Failure 400 {object} map[string]string
// @Router /items [post]
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	item, err := h.service.Create(c.Context(), in)
	if err != nil {
		return h.fail(c, err, "Item creation failed")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleList returns a page of items.
// @Summary List items
// @Tags items
// @Produce json
// @Param q query string false "Keyword against serial/name"
// @Param status query string false "available|borrowed|reserved|out_of_order"
// @Success 200 {object} map[string]any
// @Router /items [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	items, total, err := h.service.List(c.Context(), Query{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Page:   c.QueryInt("page", 1),
		Size:   c.QueryInt("size", 20),
	})
	if err != nil {
		return h.fail(c, err, "Item listing failed")
	}
	return c.JSON(fiber.Map{"items": items, "total": total})
}

// HandleGet returns one item with derived status and open loan.
// @Summary Get item
// @Tags items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} Detail
// @Failure 404 {object} map[string]string
// @Router /items/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Item fetch failed")
	}
	return c.JSON(detail)
}

// HandleUpdate applies a tagged update request.
// @Summary Update item
// @Tags items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param update body UpdateRequest true "Update request"
// @Success 200 {object} models.Item
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Blocked by open loan"
// @Router /items/{id} [put]
func (h *Handler) HandleUpdate(c *fiber.Ctx) error {
	req, err := ParseUpdateRequest(c.Body())
	if err != nil {
		return h.fail(c, err, "Item update rejected")
	}
	item, err := h.service.Update(c.Context(), c.Params("id"), req, auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "Item update failed")
	}
	return c.JSON(item)
}

// HandleDelete removes an item without open loans.
// @Summary Delete item
// @Tags items
// @Param id path string true "Item ID"
// @Success 204
// @Failure 409 {object} map[string]string "Open loan exists"
// @Router /items/{id} [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
		return h.fail(c, err, "Item deletion failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleUploadPhoto attaches a photo to the item.
// @Summary Upload item photo
// @Tags items
// @Accept mpfd
// @Param id path string true "Item ID"
// @Param photo formData file true "Photo file"
// @Success 200 {object} models.Item
// @Router /items/{id}/photo [put]
func (h *Handler) HandleUploadPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "photo file is required"})
	}
	src, err := file.Open()
	if err != nil {
		return h.fail(c, err, "Photo open failed")
	}
	defer src.Close()

	item, err := h.service.UploadPhoto(c.Context(), c.Params("id"),
		file.Filename, file.Header.Get("Content-Type"), src, file.Size)
	if err != nil {
		return h.fail(c, err, "Photo upload failed")
	}
	return c.JSON(item)
}

// HandleGetPhoto streams the item photo.
// @Summary Get item photo
// @Tags items
// @Param id path string true "Item ID"
// @Success 200
// @Failure 404 {object} map[string]string
// @Router /items/{id}/photo [get]
func (h *Handler) HandleGetPhoto(c *fiber.Ctx) error {
	rc, _, err := h.service.GetPhoto(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "Photo fetch failed")
	}
	return c.SendStream(rc)
}

// HandleDeletePhoto removes the item photo.
// @Summary Delete item photo
// @Tags items
// @Param id path string true "Item ID"
// @Success 204
// @Router /items/{id}/photo [delete]
func (h *Handler) HandleDeletePhoto(c *fiber.Ctx) error {
	if err := h.service.DeletePhoto(c.Context(), c.Params("id")); err != nil {
		return h.fail(c, err, "Photo deletion failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
