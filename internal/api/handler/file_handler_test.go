package handler

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"testing"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
)

// uploadedDocument stores a passport for a customer registered by agent and
// managed by rm, and returns the blob id its URL points at.
func uploadedDocument(t *testing.T, fx *fixture) string {
	t.Helper()
	custID := fx.addCustomer(t, domain.Customer{
		FirstName: "Carla", Email: customer.Email,
		RegisteredByAgentID: agent.ID, AssignedRMID: rm.ID,
	})
	fx.load(t)

	doc, err := fx.store.AddDocumentToCustomer(context.Background(), custID,
		service.NewDocument{Name: "passport.pdf", Type: domain.DocumentPDF}, strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("AddDocumentToCustomer: %v", err)
	}
	eventually(t, func() bool {
		c, ok := fx.store.Customer(custID)
		return ok && len(c.Documents) == 1
	})
	return path.Base(doc.URL)
}

func TestFileHandler_Download(t *testing.T) {
	fx := newFixture()
	id := uploadedDocument(t, fx)
	h := NewFileHandler(fx.store, fx.blobs)

	for _, u := range []*domain.User{admin, agent, rm, customer} {
		c, rec := jsonContext(http.MethodGet, "/", "", u)
		withParams(c, "id", id)
		if err := h.Download(c); err != nil {
			t.Fatalf("%s: handler error: %v", u.ID, err)
		}
		expectCode(t, rec, http.StatusOK)
		if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
			t.Errorf("%s: content type = %q", u.ID, got)
		}
		if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "passport.pdf") || !strings.HasPrefix(got, "inline") {
			t.Errorf("%s: content disposition = %q", u.ID, got)
		}
		if rec.Body.String() != "%PDF-1.4" {
			t.Errorf("%s: body = %q", u.ID, rec.Body.String())
		}
	}
}

func TestFileHandler_OtherCallersForbidden(t *testing.T) {
	fx := newFixture()
	id := uploadedDocument(t, fx)
	h := NewFileHandler(fx.store, fx.blobs)

	others := []*domain.User{
		{ID: "u-agent2", Email: "agent2@travel.test", Roles: []domain.Role{domain.RoleAgent}},
		{ID: "u-rm2", Email: "rm2@travel.test", Roles: []domain.Role{domain.RoleRelationshipManager}},
		{ID: "u-cust2", Email: "dee@example.com", Roles: []domain.Role{domain.RoleCustomer}},
		{ID: "u-none", Email: "none@example.com", Roles: []domain.Role{}},
	}
	for _, u := range others {
		c, rec := jsonContext(http.MethodGet, "/", "", u)
		withParams(c, "id", id)
		if err := h.Download(c); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", u.ID, err)
		}
		if rec.Body.Len() != 0 {
			t.Fatalf("%s: body leaked: %q", u.ID, rec.Body.String())
		}
	}
}

func TestFileHandler_UnownedBlob(t *testing.T) {
	fx := newFixture()
	fx.load(t)
	url, err := fx.blobs.Upload(context.Background(), "stray.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	h := NewFileHandler(fx.store, fx.blobs)

	c, _ := jsonContext(http.MethodGet, "/", "", agent)
	withParams(c, "id", path.Base(url))
	expectStatus(t, h.Download(c), http.StatusNotFound)

	c, rec := jsonContext(http.MethodGet, "/", "", admin)
	withParams(c, "id", path.Base(url))
	if err := h.Download(c); err != nil {
		t.Fatalf("admin: handler error: %v", err)
	}
	expectCode(t, rec, http.StatusOK)
}

func TestFileHandler_NotFound(t *testing.T) {
	fx := newFixture()
	fx.load(t)
	h := NewFileHandler(fx.store, fx.blobs)

	for _, u := range []*domain.User{admin, customer} {
		c, _ := jsonContext(http.MethodGet, "/", "", u)
		withParams(c, "id", "missing")
		expectStatus(t, h.Download(c), http.StatusNotFound)
	}
}
