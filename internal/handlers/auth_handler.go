package handlers

import (
	"errors"

	"myshop/internal/models"
	"myshop/internal/services"
	"myshop/internal/validators"
	pkgerrors "myshop/pkg/errors"
	"myshop/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// RegisterRoutes registers the authentication routes. throttle may be nil.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, throttle fiber.Handler) {
	authRoutes := router.Group("/auth", orNext(throttle))
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,max=150"`
	Password string `json:"password" validate:"required,notblank"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid request body")
	}
	if errs := validators.Struct(req); len(errs) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Username and password required").WithDetails(errs)
	}

	user := models.User{Username: req.Username, Password: req.Password}
	if req.Email != "" {
		user.Email = &req.Email
	}
	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		if errors.Is(err, services.ErrUserExists) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "User already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Could not register user")
	}

	logger.FromContext(c.UserContext(), h.log).Info().Str("user_id", user.ID).Msg("user registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid request body")
	}
	if errs := validators.Struct(req); len(errs) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Username and password required").WithDetails(errs)
	}

	token, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			logger.FromContext(c.UserContext(), h.log).Warn().Str("username", req.Username).Msg("login rejected")
			return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Invalid username or password")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Could not log in")
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}
