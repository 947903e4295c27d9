package domain

import (
	"strings"
	"time"
)

// DocumentType is the file format of an uploaded customer document.
type DocumentType string

const (
	DocumentPDF  DocumentType = "PDF"
	DocumentDOCX DocumentType = "DOCX"
	DocumentJPG  DocumentType = "JPG"
	DocumentPNG  DocumentType = "PNG"
)

// VerificationStatus is the outcome of a document check.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "Pending"
	VerificationVerified VerificationStatus = "Verified"
	VerificationRejected VerificationStatus = "Rejected"
	VerificationError    VerificationStatus = "Error"
)

// Final reports whether a document in this status is no longer offered for verification.
func (s VerificationStatus) Final() bool {
	return s == VerificationVerified || s == VerificationRejected
}

// CustomerDocument is an identity or travel document attached to a customer.
type CustomerDocument struct {
	ID             string             `json:"id" bson:"id"`
	Name           string             `json:"name" bson:"name"`
	Type           DocumentType       `json:"type" bson:"type"`
	URL            string             `json:"url" bson:"url"`
	UploadDate     time.Time          `json:"uploadDate" bson:"uploadDate"`
	VerifiedStatus VerificationStatus `json:"verifiedStatus,omitempty" bson:"verifiedStatus,omitempty"`
	AIFeedback     string             `json:"aiFeedback,omitempty" bson:"aiFeedback,omitempty"`
}

// DocumentPatch carries the document fields to change. Nil fields are left as-is.
type DocumentPatch struct {
	VerifiedStatus *VerificationStatus
	AIFeedback     *string
}

// Empty reports whether the patch changes nothing.
func (p DocumentPatch) Empty() bool {
	return p.VerifiedStatus == nil && p.AIFeedback == nil
}

// Apply writes the set fields onto d.
func (p DocumentPatch) Apply(d *CustomerDocument) {
	if p.VerifiedStatus != nil {
		d.VerifiedStatus = *p.VerifiedStatus
	}
	if p.AIFeedback != nil {
		d.AIFeedback = *p.AIFeedback
	}
}

// Fields returns the set fields keyed by their stored names.
func (p DocumentPatch) Fields() map[string]any {
	set := make(map[string]any, 2)
	if p.VerifiedStatus != nil {
		set["verifiedStatus"] = *p.VerifiedStatus
	}
	if p.AIFeedback != nil {
		set["aiFeedback"] = *p.AIFeedback
	}
	return set
}

// Customer is a traveller registered by an agent. A customer signs in with
// the same email as this record; there is no id link to the users collection.
type Customer struct {
	ID                  string             `json:"id" bson:"_id,omitempty"`
	FirstName           string             `json:"firstName" bson:"firstName"`
	LastName            string             `json:"lastName" bson:"lastName"`
	Email               string             `json:"email" bson:"email"`
	DOB                 string             `json:"dob" bson:"dob"`
	RegistrationDate    time.Time          `json:"registrationDate" bson:"registrationDate"`
	RegisteredByAgentID string             `json:"registeredByAgentId" bson:"registeredByAgentId"`
	AssignedRMID        string             `json:"assignedRmId,omitempty" bson:"assignedRmId,omitempty"`
	BookingStatus       BookingStatus      `json:"bookingStatus" bson:"bookingStatus"`
	Documents           []CustomerDocument `json:"documents" bson:"documents"`
}

// FullName joins first and last name.
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Document returns the document with the given id.
func (c *Customer) Document(id string) (*CustomerDocument, bool) {
	for i := range c.Documents {
		if c.Documents[i].ID == id {
			return &c.Documents[i], true
		}
	}
	return nil, false
}
