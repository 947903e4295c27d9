package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// FileHandler streams uploaded blobs back to the users allowed to see the
// customer that owns them.
type FileHandler struct {
	store Store
	blobs ports.BlobStorage
}

func NewFileHandler(store Store, blobs ports.BlobStorage) *FileHandler {
	return &FileHandler{store: store, blobs: blobs}
}

// Download streams the blob stored under id. Admins may fetch any blob; other
// callers only documents of customers they can see.
//
// @Summary      Download file
// @Tags         files
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id   path  string  true  "File ID"
// @Success      200
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /files/{id} [get]
func (h *FileHandler) Download(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if !u.HasRole(domain.RoleAdmin) {
		owner, ok := documentOwner(h.store.Customers(), id)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		if !service.CanSeeCustomer(u, owner) {
			return domain.ErrForbidden
		}
	}

	rc, name, err := h.blobs.Open(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return err
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": path.Base(name)}))
	c.Response().Header().Set(echo.HeaderContentType, ctype)
	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), rc)
	return err
}

// documentOwner finds the customer holding a document whose URL serves blobID.
func documentOwner(customers []domain.Customer, blobID string) (domain.Customer, bool) {
	if blobID == "" {
		return domain.Customer{}, false
	}
	suffix := "/files/" + blobID
	for _, c := range customers {
		for _, d := range c.Documents {
			if strings.HasSuffix(d.URL, suffix) {
				return c, true
			}
		}
	}
	return domain.Customer{}, false
}
