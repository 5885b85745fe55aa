package user

import (
	"time"

	"loankeeper/core/fault"
	"loankeeper/core/logger"
	"loankeeper/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for accounts and authentication.
type Handler struct {
	service      *Service
	cookieSecure bool
}

// NewHandler creates a new HTTP handler. cookieSecure marks the
// session cookie Secure; keep it on everywhere but local development.
func NewHandler(service *Service, cookieSecure bool) *Handler {
	return &Handler{service: service, cookieSecure: cookieSecure}
}

// RegisterAuthRoutes registers the routes that must stay outside the
// session middleware.
func (h *Handler) RegisterAuthRoutes(app fiber.Router) {
	group := app.Group("/auth")
	group.Post("/login", h.HandleLogin)
	group.Post("/logout", h.HandleLogout)
	group.Post("/reset-request", h.HandleResetRequest)
	group.Post("/reset", h.HandleReset)
}

// RegisterRoutes registers the admin account CRUD routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/users")
	group.Post("/", h.HandleCreate)
	group.Get("/", h.HandleList)
	group.Get("/:id", h.HandleGet)
	group.Put("/:id", h.HandleUpdate)
	group.Delete("/:id", h.HandleDelete)
}

func (h *Handler) fail(c *fiber.Ctx, err error, msg string) error {
	code := fault.Status(err)
	if code == fiber.StatusInternalServerError {
		l := logger.WithRayID(h.service.logger, c)
		l.Error(msg, zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates an admin and sets the session cookie.
// @Summary Admin login
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Credentials"
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID, user, err := h.service.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		if err == ErrBadCredentials {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return h.fail(c, err, "Login failed")
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    sessionID,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
		Expires:  time.Now().Add(12 * time.Hour),
	})
	return c.JSON(user)
}

// HandleLogout drops the session and clears the cookie.
// @Summary Logout
// @Tags auth
// @Success 204
// @Router /auth/logout [post]
func (h *Handler) HandleLogout(c *fiber.Ctx) error {
	if sid := c.Cookies(auth.CookieName); sid != "" {
		if err := h.service.Logout(c.Context(), sid); err != nil {
			return h.fail(c, err, "Logout failed")
		}
	}
	c.ClearCookie(auth.CookieName)
	return c.SendStatus(fiber.StatusNoContent)
}

type resetRequest struct {
	Username string `json:"username"`
}

// HandleResetRequest issues a password-reset token. The response is
// the same whether the account exists or not.
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Success 200 {object} map[string]string
// @Router /auth/reset-request [post]
func (h *Handler) HandleResetRequest(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	h.service.IssueResetToken(c.Context(), req.Username)
	return c.JSON(fiber.Map{"status": "ok"})
}

type resetCompleteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleReset consumes a reset token and sets the new password.
// @Summary Complete password reset
// @Tags auth
// @Accept json
// @Success 204
// @Failure 400 {object} map[string]string "Invalid or expired token"
// @Router /auth/reset [post]
func (h *Handler) HandleReset(c *fiber.Ctx) error {
	var req resetCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.service.ResetPassword(c.Context(), req.Token, req.Password); err != nil {
		return h.fail(c, err, "Password reset failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleCreate adds an account.
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body CreateInput true "New account"
// @Success 201 {object} models.User
// @Router /users [post]
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var in CreateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	user, err := h.service.Create(c.Context(), in, auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "User creation failed")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// HandleGet returns one account.
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string
// @Router /users/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	user, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.fail(c, err, "User fetch failed")
	}
	return c.JSON(user)
}

// HandleList returns a page of accounts.
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Keyword against username/display name"
// @Success 200 {object} map[string]any
// @Router /users [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	users, total, err := h.service.List(c.Context(), Query{
		Q:    c.Query("q"),
		Page: c.QueryInt("page", 1),
		Size: c.QueryInt("size", 20),
	})
	if err != nil {
		return h.fail(c, err, "User listing failed")
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// HandleUpdate changes an account.
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param update body UpdateInput true "Changes"
// @Success 200 {object} models.User
// @Router /users/{id} [put]
func (h *Handler) HandleUpdate(c *fiber.Ctx) error {
	var in UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	user, err := h.service.Update(c.Context(), c.Params("id"), in, auth.UserID(c))
	if err != nil {
		return h.fail(c, err, "User update failed")
	}
	return c.JSON(user)
}

// HandleDelete removes an account and everything that only made sense
// with it.
// @Summary Delete user
// @Tags users
// @Param id path string true "User ID"
// @Success 204
// @Failure 409 {object} map[string]string "Open loan exists"
// @Router /users/{id} [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
		return h.fail(c, err, "User deletion failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
