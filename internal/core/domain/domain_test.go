package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundErrorsMatchGeneric(t *testing.T) {
	for _, err := range []error{ErrUserNotFound, ErrItineraryNotFound, ErrCollateralNotFound, ErrCustomerNotFound, ErrDocumentNotFound, ErrBookingNotFound} {
		wrapped := fmt.Errorf("op: %w", err)
		if !errors.Is(wrapped, ErrNotFound) {
			t.Errorf("%v should match ErrNotFound", err)
		}
		if !errors.Is(wrapped, err) {
			t.Errorf("%v should match itself", err)
		}
	}
	if errors.Is(ErrCustomerNotFound, ErrBookingNotFound) {
		t.Error("distinct not-found errors must not match each other")
	}
}

func TestUserRoles(t *testing.T) {
	u := &User{Roles: []Role{RoleAgent, RoleRelationshipManager}}
	if !u.HasRole(RoleAgent) || u.HasRole(RoleAdmin) {
		t.Errorf("HasRole wrong for %v", u.Roles)
	}
	if !u.HasAnyRole(RoleAdmin, RoleRelationshipManager) || u.HasAnyRole(RoleCustomer) {
		t.Errorf("HasAnyRole wrong for %v", u.Roles)
	}
	var none *User
	if none.HasRole(RoleAdmin) {
		t.Error("nil user has no roles")
	}
	if Role("Pilot").Valid() || !RoleRelationshipManager.Valid() {
		t.Error("Valid wrong")
	}
}

func TestVerificationStatusFinal(t *testing.T) {
	cases := map[VerificationStatus]bool{
		VerificationPending:  false,
		VerificationError:    false,
		VerificationVerified: true,
		VerificationRejected: true,
	}
	for s, want := range cases {
		if s.Final() != want {
			t.Errorf("%s.Final() = %v, want %v", s, !want, want)
		}
	}
}

func TestBookingPatch(t *testing.T) {
	if !(BookingPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	paid := PaymentPaid
	p := BookingPatch{PaymentStatus: &paid}
	fields := p.Fields()
	if p.Empty() || len(fields) != 1 || fields["paymentStatus"] != PaymentPaid {
		t.Errorf("unexpected fields %v", fields)
	}
}

func TestCollateralPatchApply(t *testing.T) {
	it := Itinerary{Collaterals: []Collateral{{ID: "a", Name: "Old"}, {ID: "b"}}}
	c, ok := it.Collateral("a")
	if !ok {
		t.Fatal("collateral a not found")
	}

	name, approved := "New", true
	fb := CollateralFeedback{IssuesFound: true, Feedback: "check pricing"}
	CollateralPatch{Name: &name, Approved: &approved, AIFeedback: &fb}.Apply(c)
	fb.Feedback = "changed after apply"

	got := it.Collaterals[0]
	if got.Name != "New" || !got.Approved || got.AIFeedback == nil || got.AIFeedback.Feedback != "check pricing" {
		t.Errorf("unexpected collateral %+v", got)
	}
	if _, ok := it.Collateral("zzz"); ok {
		t.Error("unknown collateral should not be found")
	}
	if !(CollateralPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestDocumentPatchApply(t *testing.T) {
	c := Customer{FirstName: " Ana", LastName: "", Documents: []CustomerDocument{{ID: "d1", VerifiedStatus: VerificationPending}}}
	d, ok := c.Document("d1")
	if !ok {
		t.Fatal("document d1 not found")
	}
	status := VerificationRejected
	DocumentPatch{VerifiedStatus: &status}.Apply(d)

	if c.Documents[0].VerifiedStatus != VerificationRejected || c.Documents[0].AIFeedback != "" {
		t.Errorf("unexpected document %+v", c.Documents[0])
	}
	if c.FullName() != "Ana" {
		t.Errorf("FullName = %q", c.FullName())
	}
}
