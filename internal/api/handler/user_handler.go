package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssoserver/user-directory/internal/core/domain"
	"github.com/ssoserver/user-directory/internal/core/ports"
)

// UserHandler handles HTTP requests for the user directory.
type UserHandler struct {
	service ports.UserService
}

func NewUserHandler(service ports.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Register mounts the user routes on g.
func (h *UserHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// List handles GET /api/user.
//
// @Summary      List users
// @Description  Enabled users only unless is_enabled is "false" or "all". Sorted by username.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        is_enabled  query     string  false  "true (default), false or all"
// @Success      200         {array}   userResponse
// @Failure      401         {object}  map[string]any
// @Failure      403         {object}  map[string]any
// @Failure      422         {object}  map[string]any
// @Failure      500         {object}  map[string]any
// @Router       /api/user [get]
func (h *UserHandler) List(c echo.Context) error {
	var q listUsersQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	views, err := h.service.List(c.Request().Context(), toListInput(q))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponses(views))
}

// Get handles GET /api/user/:id.
//
// @Summary      Get a user by id
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  userResponse
// @Failure      404  {object}  map[string]any
// @Failure      500  {object}  map[string]any
// @Router       /api/user/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	view, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if view == nil {
		return domain.ErrUserNotFound
	}
	return c.JSON(http.StatusOK, toUserResponse(*view))
}

// Create handles POST /api/user. A disabled user holding the email is
// reactivated and its id returned.
//
// @Summary      Create or reactivate a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      userRequest  true  "User"
// @Success      201   {object}  createUserResponse
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Failure      422   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/user [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	id, err := h.service.Create(c.Request().Context(), toCreateInput(req, ctxActor(c)))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createUserResponse{ID: id})
}

// Update handles PUT /api/user/:id.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  string             true  "User id"
// @Param        body  body  updateUserRequest  true  "Desired state"
// @Success      204
// @Failure      400   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Failure      422   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/user/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.service.Update(c.Request().Context(), toUpdateInput(c.Param("id"), req, ctxActor(c))); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete handles DELETE /api/user/:id. The record is disabled, not removed.
//
// @Summary      Disable a user
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "User id"
// @Success      204
// @Failure      404  {object}  map[string]any
// @Failure      500  {object}  map[string]any
// @Router       /api/user/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id"), ctxActor(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
