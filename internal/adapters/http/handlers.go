package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tasklist/internal/application/services"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/ports"
)

// UserContextKey is where the auth middleware stores the caller's user id
const UserContextKey = "user"

// VersionHeader carries the list version on responses
const VersionHeader = "X-List-Version"

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService ports.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register handles account creation
//
// @Summary Register an account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body ports.RegisterRequest true "credentials"
// @Success 201 {object} ports.AuthResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Register failed", "error", err, "username", req.Username)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login handles user login
//
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body ports.LoginRequest true "credentials"
// @Success 200 {object} ports.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.LogSecurityEvent("login_failed", "", c.RealIP(), map[string]interface{}{
			"username": req.Username,
		})
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, response)
}

// UserHandler serves the signed-in account
type UserHandler struct {
	userService ports.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService ports.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// GetProfile returns the caller's account
//
// @Summary Current account
// @Tags users
// @Produce json
// @Success 200 {object} entities.User
// @Security BearerAuth
// @Router /users/me [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	user, err := h.userService.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password
//
// @Summary Change password
// @Tags users
// @Accept json
// @Param body body ports.ChangePasswordRequest true "old and new password"
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req ports.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.userService.ChangePassword(c.Request().Context(), userID, req); err != nil {
		h.logger.LogSecurityEvent("password_change_failed", userID, c.RealIP(), nil)
		return toHTTPError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// toHTTPError maps domain errors onto status codes
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrItemNotFound),
		errors.Is(err, entities.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrTaskConflict),
		errors.Is(err, entities.ErrStaleVersion),
		errors.Is(err, entities.ErrUserExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidTaskData),
		errors.Is(err, entities.ErrNotChecklist):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrInvalidCredentials),
		errors.Is(err, entities.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, entities.ErrPersistence):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable, refetch tasks").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)).SetInternal(err)
}

// getUserIDFromContext returns the user id set by the auth middleware
func getUserIDFromContext(c echo.Context) (string, error) {
	userID, ok := c.Get(UserContextKey).(string)
	if !ok || userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing user")
	}
	return userID, nil
}

// baseVersion reads If-Match. Absent means the write is not version checked.
func baseVersion(c echo.Context) (*int64, error) {
	raw := strings.TrimSpace(c.Request().Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "If-Match must be a list version")
	}
	return &v, nil
}

func intParam(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return v, nil
}

func setVersion(c echo.Context, version int64) {
	v := strconv.FormatInt(version, 10)
	c.Response().Header().Set(VersionHeader, v)
	c.Response().Header().Set("ETag", `"`+v+`"`)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Message string `json:"message"`
}

// TaskListResponse is the body of GET /tasks
type TaskListResponse struct {
	Tasks   []*entities.Task `json:"tasks"`
	Version int64            `json:"version"`
	Filter  entities.Filter  `json:"filter"`
}
