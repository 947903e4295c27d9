package service

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/99minutos/travel-portal/internal/core/domain"
)

// VisibleCustomers returns the customers the user may see, in input order.
// Admins see everyone; agents see customers they registered; relationship
// managers see customers assigned to them; customers see the record with
// their own email. Several roles see the union.
func VisibleCustomers(u *domain.User, customers []domain.Customer) []domain.Customer {
	out := []domain.Customer{}
	if u == nil {
		return out
	}
	if u.HasRole(domain.RoleAdmin) {
		return append(out, customers...)
	}
	for _, c := range customers {
		if canSeeCustomer(u, c) {
			out = append(out, c)
		}
	}
	return out
}

func canSeeCustomer(u *domain.User, c domain.Customer) bool {
	switch {
	case u.HasRole(domain.RoleAdmin):
		return true
	case u.HasRole(domain.RoleAgent) && c.RegisteredByAgentID == u.ID:
		return true
	case u.HasRole(domain.RoleRelationshipManager) && c.AssignedRMID != "" && c.AssignedRMID == u.ID:
		return true
	case u.HasRole(domain.RoleCustomer) && strings.EqualFold(c.Email, u.Email):
		return true
	}
	return false
}

// CanSeeCustomer reports whether u may see c.
func CanSeeCustomer(u *domain.User, c domain.Customer) bool {
	return u != nil && canSeeCustomer(u, c)
}

// VisibleBookings returns the bookings of the customers the user may see.
// Bookings that reference an unknown customer are visible to admins only.
func VisibleBookings(u *domain.User, customers []domain.Customer, bookings []domain.Booking) []domain.Booking {
	out := []domain.Booking{}
	if u == nil {
		return out
	}
	if u.HasRole(domain.RoleAdmin) {
		return append(out, bookings...)
	}
	visible := make(map[string]struct{})
	for _, c := range VisibleCustomers(u, customers) {
		visible[c.ID] = struct{}{}
	}
	for _, b := range bookings {
		if _, ok := visible[b.CustomerID]; ok {
			out = append(out, b)
		}
	}
	return out
}

// BookingFilter narrows a booking list. Zero fields match everything. From
// and To are compared by calendar day and are both inclusive.
type BookingFilter struct {
	Status        domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	From          time.Time
	To            time.Time
}

// FilterBookings applies f and returns the matches ordered by booking date.
func FilterBookings(bookings []domain.Booking, f BookingFilter) []domain.Booking {
	out := []domain.Booking{}
	for _, b := range bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
			continue
		}
		day := dayOf(b.BookingDate)
		if !f.From.IsZero() && day.Before(dayOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && day.After(dayOf(f.To)) {
			continue
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b domain.Booking) int {
		return a.BookingDate.Compare(b.BookingDate)
	})
	return out
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CalendarDay is one cell of a month grid. Padding cells outside the month
// have a zero Date.
type CalendarDay struct {
	Date     time.Time        `json:"date"`
	Day      int              `json:"day"`
	Bookings []domain.Booking `json:"bookings"`
}

// BookingCalendar lays the month out as Sunday-first weeks of seven days and
// places each booking on its day (UTC).
func BookingCalendar(bookings []domain.Booking, year int, month time.Month) [][7]CalendarDay {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	lead := int(first.Weekday())

	byDay := make(map[int][]domain.Booking)
	for _, b := range bookings {
		d := b.BookingDate.UTC()
		if d.Year() == year && d.Month() == month {
			byDay[d.Day()] = append(byDay[d.Day()], b)
		}
	}

	cells := (lead + days + 6) / 7 * 7
	weeks := make([][7]CalendarDay, cells/7)
	for i := 0; i < cells; i++ {
		cell := CalendarDay{Bookings: []domain.Booking{}}
		if day := i - lead + 1; day >= 1 && day <= days {
			cell.Date = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			cell.Day = day
			if bs := byDay[day]; bs != nil {
				cell.Bookings = bs
			}
		}
		weeks[i/7][i%7] = cell
	}
	return weeks
}

// ItinerarySortKey names a sortable itinerary field.
type ItinerarySortKey string

const (
	SortByTitle       ItinerarySortKey = "title"
	SortByDestination ItinerarySortKey = "destination"
	SortByPrice       ItinerarySortKey = "price"
	SortByDuration    ItinerarySortKey = "duration"
)

// SortItineraries returns a sorted copy of items. Unknown keys keep the
// input order.
func SortItineraries(items []domain.Itinerary, key ItinerarySortKey, desc bool) []domain.Itinerary {
	out := slices.Clone(items)
	var less func(a, b domain.Itinerary) int
	switch key {
	case SortByTitle:
		less = func(a, b domain.Itinerary) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	case SortByDestination:
		less = func(a, b domain.Itinerary) int {
			return strings.Compare(strings.ToLower(a.Destination), strings.ToLower(b.Destination))
		}
	case SortByPrice:
		less = func(a, b domain.Itinerary) int { return cmp.Compare(a.Price, b.Price) }
	case SortByDuration:
		less = func(a, b domain.Itinerary) int { return cmp.Compare(a.Duration, b.Duration) }
	default:
		return out
	}
	slices.SortStableFunc(out, func(a, b domain.Itinerary) int {
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return out
}
