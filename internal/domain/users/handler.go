package users

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/validation"
)

type Handler struct {
	svc      *Service
	throttle echo.MiddlewareFunc
}

// NewHandler returns the account and token handler. throttle, when not nil,
// guards the endpoints that accept credentials.
func NewHandler(svc *Service, throttle echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, throttle: throttle}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	var limited []echo.MiddlewareFunc
	if h.throttle != nil {
		limited = append(limited, h.throttle)
	}

	g.POST("/users", h.Register, limited...)
	g.GET("/users", h.List)
	g.GET("/users/me", h.GetMe)
	g.PUT("/users/me", h.UpdateMe)
	g.PATCH("/users/me", h.UpdateMe)
	g.DELETE("/users/me", h.DeleteMe, limited...)
	g.POST("/users/set_password", h.SetPassword, limited...)
	g.POST("/users/set_username", h.SetUsername, limited...)
	g.GET("/users/:id", h.Get)
	g.PUT("/users/:id", h.Update)
	g.PATCH("/users/:id", h.Update)
	g.DELETE("/users/:id", h.Delete, limited...)

	g.POST("/jwt/create", h.CreateToken, limited...)
	g.POST("/jwt/refresh", h.RefreshToken, limited...)
	g.POST("/jwt/verify", h.VerifyToken)
	g.POST("/jwt/blacklist", h.BlacklistToken)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	u, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, NewUserView(u))
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context(), auth.CurrentPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewUserViews(items))
}

// self returns the caller's own user id.
func self(c echo.Context) (int64, error) {
	caller := auth.CurrentPrincipal(c)
	if caller == nil {
		return 0, apierr.ErrUnauthenticated
	}
	return caller.UserID, nil
}

func (h *Handler) GetMe(c echo.Context) error {
	id, err := self(c)
	if err != nil {
		return err
	}
	return h.get(c, id)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	return h.get(c, id)
}

func (h *Handler) get(c echo.Context, id int64) error {
	u, err := h.svc.Get(c.Request().Context(), auth.CurrentPrincipal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewUserView(u))
}

func (h *Handler) UpdateMe(c echo.Context) error {
	id, err := self(c)
	if err != nil {
		return err
	}
	return h.update(c, id)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	return h.update(c, id)
}

func (h *Handler) update(c echo.Context, id int64) error {
	body, err := validation.ReadBody(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Update(c.Request().Context(), auth.CurrentPrincipal(c), id, func(in *UpdateInput) error {
		return validation.Unmarshal(body, in)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewUserView(u))
}

func (h *Handler) DeleteMe(c echo.Context) error {
	id, err := self(c)
	if err != nil {
		return err
	}
	return h.delete(c, id)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	return h.delete(c, id)
}

func (h *Handler) delete(c echo.Context, id int64) error {
	var in DeleteInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), auth.CurrentPrincipal(c), id, in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetPassword(c echo.Context) error {
	var in SetPasswordInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	if err := h.svc.SetPassword(c.Request().Context(), auth.CurrentPrincipal(c), in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetUsername(c echo.Context) error {
	var in SetUsernameInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	if err := h.svc.SetUsername(c.Request().Context(), auth.CurrentPrincipal(c), in); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateToken(c echo.Context) error {
	var in LoginInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	pair, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) RefreshToken(c echo.Context) error {
	var in RefreshInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Refresh(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) VerifyToken(c echo.Context) error {
	var in VerifyInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	if err := h.svc.Verify(c.Request().Context(), in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct{}{})
}

func (h *Handler) BlacklistToken(c echo.Context) error {
	var in RefreshInput
	if err := validation.DecodeJSON(c, &in); err != nil {
		return err
	}
	if err := h.svc.Blacklist(c.Request().Context(), in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, struct{}{})
}
