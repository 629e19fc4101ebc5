package patients

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/access"
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
	api.GET("/patients", h.List)
	api.POST("/patients", h.Create)
	api.GET("/patients/:id", h.Get)
	api.PUT("/patients/:id", h.Update)
	api.PATCH("/patients/:id", h.PartialUpdate)
	api.DELETE("/patients/:id", h.Delete)
}

func strategy(c echo.Context, op access.Operation) (access.PatientStrategy, error) {
	return access.ForPatients(auth.CurrentPrincipal(c), op)
}

// render shapes items for st, loading doctor profiles when the view nests
// them.
func (h *Handler) render(c echo.Context, st access.PatientStrategy, items ...*Patient) ([]interface{}, error) {
	var doctors map[int64]*profiles.Profile
	if st.View == access.ViewStaffRead && len(items) > 0 {
		var err error
		doctors, err = h.svc.Doctors(c.Request().Context(), items...)
		if err != nil {
			return nil, err
		}
	}
	out := make([]interface{}, 0, len(items))
	for _, p := range items {
		out = append(out, Render(st.View, p, doctors))
	}
	return out, nil
}

func (h *Handler) List(c echo.Context) error {
	st, err := strategy(c, access.List)
	if err != nil {
		return err
	}
	pg, err := pagination.FromContext(c, h.pageSize)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), st, ListParams{
		BirthDate: c.QueryParam("birth_date"),
		Search:    c.QueryParam("search"),
		Ordering:  c.QueryParam("ordering"),
		Limit:     pg.Limit(),
		Offset:    pg.Offset(),
	})
	if err != nil {
		return err
	}

	results, err := h.render(c, st, items...)
	if err != nil {
		return err
	}
	page, err := pagination.NewPage(c, pg, total, results)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) Get(c echo.Context) error {
	st, err := strategy(c, access.Retrieve)
	if err != nil {
		return err
	}
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), st, id)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, st, p)
}

func (h *Handler) respond(c echo.Context, status int, st access.PatientStrategy, p *Patient) error {
	out, err := h.render(c, st, p)
	if err != nil {
		return err
	}
	return c.JSON(status, out[0])
}

func (h *Handler) Create(c echo.Context) error {
	st, err := strategy(c, access.Create)
	if err != nil {
		return err
	}
	body, err := validation.ReadBody(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Create(c.Request().Context(), st, func(in *Input) error {
		return validation.Unmarshal(body, in)
	})
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, st, p)
}

func (h *Handler) Update(c echo.Context) error {
	return h.update(c, access.Update)
}

func (h *Handler) PartialUpdate(c echo.Context) error {
	return h.update(c, access.PartialUpdate)
}

func (h *Handler) update(c echo.Context, op access.Operation) error {
	st, err := strategy(c, op)
	if err != nil {
		return err
	}
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	body, err := validation.ReadBody(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(c.Request().Context(), st, id, func(in *Input) error {
		return validation.Unmarshal(body, in)
	})
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, st, p)
}

func (h *Handler) Delete(c echo.Context) error {
	st, err := strategy(c, access.Delete)
	if err != nil {
		return err
	}
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), st, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
