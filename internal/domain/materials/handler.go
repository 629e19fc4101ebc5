package materials

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/blobstore"
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
	g := api.Group("/patients/:patient_id/materials")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id", h.PartialUpdate)
	g.DELETE("/:id", h.Delete)
}

// target resolves the strategy and the path ids. The material id is zero
// for collection routes.
func target(c echo.Context, op access.Operation) (access.MaterialStrategy, int64, int64, error) {
	st, err := access.ForMaterials(auth.CurrentPrincipal(c), op)
	if err != nil {
		return st, 0, 0, err
	}
	patientID, err := validation.ParamID(c, "patient_id")
	if err != nil {
		return st, 0, 0, access.ParentNotFound()
	}
	if op == access.List || op == access.Create {
		return st, patientID, 0, nil
	}
	id, err := validation.ParamID(c, "id")
	if err != nil {
		return st, 0, 0, err
	}
	return st, patientID, id, nil
}

// view renders m with an absolute file URL built from the request.
func (h *Handler) view(c echo.Context, m *Material) MaterialView {
	path := h.svc.FileURL(m.File)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return NewMaterialView(m, path)
	}
	return NewMaterialView(m, fmt.Sprintf("%s://%s%s", c.Scheme(), c.Request().Host, path))
}

// upload returns the multipart file field, or nil when none was sent.
// The caller closes it.
func upload(c echo.Context) (*Upload, func(), error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, func() {}, nil
	}
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, nil, he
		}
		return nil, nil, apierr.Field("file", "The submitted data was not a file. Check the encoding type on the form.")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &Upload{Name: fh.Filename, Content: f}, func() { f.Close() }, nil
}

// storeError maps a blob store size rejection to 413.
func storeError(err error) error {
	if errors.Is(err, blobstore.ErrFileTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Uploaded file is too large.").SetInternal(err)
	}
	return err
}

func (h *Handler) List(c echo.Context) error {
	st, patientID, _, err := target(c, access.List)
	if err != nil {
		return err
	}
	pg, err := pagination.FromContext(c, h.pageSize)
	if err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), st, patientID, pg.Limit(), pg.Offset())
	if err != nil {
		return err
	}

	results := make([]MaterialView, 0, len(items))
	for _, m := range items {
		results = append(results, h.view(c, m))
	}
	page, err := pagination.NewPage(c, pg, total, results)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) Get(c echo.Context) error {
	st, patientID, id, err := target(c, access.Retrieve)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), st, patientID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.view(c, m))
}

func (h *Handler) Create(c echo.Context) error {
	st, patientID, _, err := target(c, access.Create)
	if err != nil {
		return err
	}
	if err := h.svc.Authorize(c.Request().Context(), st, patientID, 0); err != nil {
		return err
	}
	up, done, err := upload(c)
	if err != nil {
		return err
	}
	defer done()

	m, err := h.svc.Create(c.Request().Context(), st, patientID, up)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, h.view(c, m))
}

func (h *Handler) Update(c echo.Context) error {
	return h.update(c, access.Update)
}

func (h *Handler) PartialUpdate(c echo.Context) error {
	return h.update(c, access.PartialUpdate)
}

func (h *Handler) update(c echo.Context, op access.Operation) error {
	st, patientID, id, err := target(c, op)
	if err != nil {
		return err
	}
	if err := h.svc.Authorize(c.Request().Context(), st, patientID, id); err != nil {
		return err
	}
	up, done, err := upload(c)
	if err != nil {
		return err
	}
	defer done()

	m, err := h.svc.Update(c.Request().Context(), st, patientID, id, up)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, h.view(c, m))
}

func (h *Handler) Delete(c echo.Context) error {
	st, patientID, id, err := target(c, access.Delete)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), st, patientID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
