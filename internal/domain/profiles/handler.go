package profiles

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/validation"
	"github.com/medrec/medrec/pkg/pagination"
)

type Handler struct {
	svc      *Service
	pageSize int
}

func NewHandler(svc *Service, pageSize int) *Handler {
	return &Handler{svc: svc, pageSize: pageSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/profiles/me", h.GetMe)
	api.PATCH("/profiles/me", h.PatchMe)

	// Staff only
	staff := auth.RequireStaff()
	api.GET("/profiles", h.List, staff)
	api.PUT("/profiles/:id", h.Update, staff)
	api.PATCH("/profiles/:id", h.PartialUpdate, staff)
}

func (h *Handler) GetMe(c echo.Context) error {
	p, err := h.svc.Me(c.Request().Context(), auth.CurrentPrincipal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewProfileView(p))
}

func (h *Handler) PatchMe(c echo.Context) error {
	caller := auth.CurrentPrincipal(c)
	if caller == nil {
		return apierr.ErrUnauthenticated
	}
	return h.update(c, caller.ProfileID, true)
}

func (h *Handler) List(c echo.Context) error {
	pg, err := pagination.FromContext(c, h.pageSize)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}

	results := make([]ProfileListItem, 0, len(items))
	for _, p := range items {
		results = append(results, NewProfileListItem(p))
	}
	page, err := pagination.NewPage(c, pg, total, results)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	return h.update(c, id, false)
}

func (h *Handler) PartialUpdate(c echo.Context) error {
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	return h.update(c, id, true)
}

func (h *Handler) update(c echo.Context, id int64, partial bool) error {
	body, err := validation.ReadBody(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), id, partial, func(in *Input) error {
		return validation.Unmarshal(body, in)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewProfileView(p))
}
