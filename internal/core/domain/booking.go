package domain

import "time"

// BookingStatus is the fulfilment state of a booking. Customers carry the
// same enum as a display field.
type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCompleted BookingStatus = "Completed"
)

// PaymentStatus is tracked independently of BookingStatus.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// Booking links a customer to an itinerary.
type Booking struct {
	ID            string        `json:"id" bson:"_id,omitempty"`
	CustomerID    string        `json:"customerId" bson:"customerId"`
	ItineraryID   string        `json:"itineraryId" bson:"itineraryId"`
	BookingDate   time.Time     `json:"bookingDate" bson:"bookingDate"`
	Status        BookingStatus `json:"status" bson:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
}

// BookingPatch carries the booking fields to change. Nil fields are left as-is.
type BookingPatch struct {
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
}

// Empty reports whether the patch changes nothing.
func (p BookingPatch) Empty() bool {
	return p.Status == nil && p.PaymentStatus == nil
}

// Fields returns the document fields the patch sets.
func (p BookingPatch) Fields() map[string]any {
	set := make(map[string]any, 2)
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.PaymentStatus != nil {
		set["paymentStatus"] = *p.PaymentStatus
	}
	return set
}
