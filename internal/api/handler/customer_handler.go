package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
	"github.com/99minutos/travel-portal/internal/core/service"
)

const defaultMaxUpload = 10 << 20

// CustomerHandler serves customers, their documents and the assist views on them.
type CustomerHandler struct {
	store     Store
	assistant ports.Assistant
	maxUpload int64
}

func NewCustomerHandler(store Store, assistant ports.Assistant, maxUpload int64) *CustomerHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &CustomerHandler{store: store, assistant: assistant, maxUpload: maxUpload}
}

// visibleCustomer loads the customer and checks the caller may see it.
func (h *CustomerHandler) visibleCustomer(c echo.Context, id string) (domain.Customer, *domain.User, error) {
	u, err := currentUser(c)
	if err != nil {
		return domain.Customer{}, nil, err
	}
	cust, ok := h.store.Customer(id)
	if !ok {
		return domain.Customer{}, nil, domain.ErrCustomerNotFound
	}
	if !service.CanSeeCustomer(u, cust) {
		return domain.Customer{}, nil, domain.ErrForbidden
	}
	return cust, u, nil
}

// checkRM rejects an assignedRmId that does not name a relationship manager.
// An empty id leaves the customer unassigned.
func (h *CustomerHandler) checkRM(id string) error {
	if id == "" {
		return nil
	}
	for _, u := range h.store.Users() {
		if u.ID == id && u.HasRole(domain.RoleRelationshipManager) {
			return nil
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "assignedRmId must reference a relationship manager")
}

// List returns the customers visible to the caller.
//
// @Summary      List customers
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.Customer
// @Router       /v1/customers [get]
func (h *CustomerHandler) List(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service.VisibleCustomers(u, h.store.Customers()))
}

// Create registers a customer. Agents always register customers under
// their own id.
//
// @Summary      Register customer
// @Tags         customers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      customerRequest  true  "Customer"
// @Success      201   {object}  createdResponse
// @Failure      400   {object}  errorResponse
// @Router       /v1/customers [post]
func (h *CustomerHandler) Create(c echo.Context) error {
	var req customerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.checkRM(req.AssignedRMID); err != nil {
		return err
	}

	agentID := req.RegisteredByAgentID
	if agentID == "" || !u.HasRole(domain.RoleAdmin) {
		agentID = u.ID
	}
	id, err := h.store.AddCustomer(c.Request().Context(), service.NewCustomer{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Email:               req.Email,
		DOB:                 req.DOB,
		RegisteredByAgentID: agentID,
		AssignedRMID:        req.AssignedRMID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createdResponse{ID: id})
}

// Update replaces the editable customer fields. Registration data and
// documents are kept. A changed assignedRmId must name a relationship manager.
//
// @Summary      Update customer
// @Tags         customers
// @Security     BearerAuth
// @Accept       json
// @Param        id    path  string                 true  "Customer ID"
// @Param        body  body  customerUpdateRequest  true  "Customer"
// @Success      204
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/customers/{id} [put]
func (h *CustomerHandler) Update(c echo.Context) error {
	var req customerUpdateRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	cust, _, err := h.visibleCustomer(c, c.Param("id"))
	if err != nil {
		return err
	}
	if req.AssignedRMID != cust.AssignedRMID {
		if err := h.checkRM(req.AssignedRMID); err != nil {
			return err
		}
	}

	cust.FirstName = req.FirstName
	cust.LastName = req.LastName
	cust.Email = req.Email
	cust.DOB = req.DOB
	cust.AssignedRMID = req.AssignedRMID
	cust.BookingStatus = req.BookingStatus
	if err := h.store.UpdateCustomer(c.Request().Context(), cust); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadDocument stores a multipart file and attaches it to the customer.
//
// @Summary      Upload customer document
// @Tags         customers
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true   "Customer ID"
// @Param        file  formData  file    true   "Document"
// @Param        name  formData  string  false  "Display name (defaults to file name)"
// @Param        type  formData  string  false  "PDF, DOCX, JPG or PNG (defaults from extension)"
// @Success      201   {object}  domain.CustomerDocument
// @Failure      413   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/customers/{id}/documents [post]
func (h *CustomerHandler) UploadDocument(c echo.Context) error {
	cust, _, err := h.visibleCustomer(c, c.Param("id"))
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > h.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = fh.Filename
	}
	docType := domain.DocumentType(strings.ToUpper(c.FormValue("type")))
	if docType == "" {
		docType = documentTypeFromName(fh.Filename)
	}
	switch docType {
	case domain.DocumentPDF, domain.DocumentDOCX, domain.DocumentJPG, domain.DocumentPNG:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "type must be one of: PDF DOCX JPG PNG")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()

	doc, err := h.store.AddDocumentToCustomer(c.Request().Context(), cust.ID, service.NewDocument{Name: name, Type: docType}, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func documentTypeFromName(name string) domain.DocumentType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return domain.DocumentPDF
	case ".docx", ".doc":
		return domain.DocumentDOCX
	case ".jpg", ".jpeg":
		return domain.DocumentJPG
	case ".png":
		return domain.DocumentPNG
	}
	return ""
}

// VerifyDocument runs document verification and writes the result onto it.
// Verified and Rejected documents are final.
//
// @Summary      Verify customer document
// @Tags         customers
// @Security     BearerAuth
// @Param        id     path  string  true  "Customer ID"
// @Param        docId  path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/customers/{id}/documents/{docId}/verify [post]
func (h *CustomerHandler) VerifyDocument(c echo.Context) error {
	cust, _, err := h.visibleCustomer(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.assistant.VerifyDocument(c.Request().Context(), cust.ID, c.Param("docId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary      Customer summary
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  summaryResponse
// @Router       /v1/customers/{id}/summary [get]
func (h *CustomerHandler) Summary(c echo.Context) error {
	cust, _, err := h.visibleCustomer(c, c.Param("id"))
	if err != nil {
		return err
	}
	text, err := h.assistant.CustomerSummary(c.Request().Context(), cust)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summaryResponse{CustomerID: cust.ID, Summary: text})
}

// @Summary      Itinerary recommendations
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {array}   domain.Recommendation
// @Router       /v1/customers/{id}/recommendations [get]
func (h *CustomerHandler) Recommendations(c echo.Context) error {
	cust, _, err := h.visibleCustomer(c, c.Param("id"))
	if err != nil {
		return err
	}
	recs, err := h.assistant.RecommendItineraries(c.Request().Context(), cust.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, recs)
}
