// Package views turns a raw collection into the page a dashboard table
// renders. Every function is pure and never reorders its input.
package views

import (
	"math"
	"strings"
	"time"

	"github.com/wolfman30/wellness-dashboard/internal/apiclient"
)

// StatusAll is the status sentinel that disables status filtering.
const StatusAll = "all"

// ClientFilter selects clients by free-text search and status.
type ClientFilter struct {
	Search string
	Status string
}

// AppointmentFilter selects appointments by search, status and calendar day.
type AppointmentFilter struct {
	Search string
	Status string
	Date   *time.Time
}

// FilterClients returns the clients matching f, preserving input order.
// Search is trimmed and case-insensitive over name, email and phone.
func FilterClients(items []apiclient.Client, f ClientFilter) []apiclient.Client {
	term := normalizeTerm(f.Search)
	out := make([]apiclient.Client, 0, len(items))
	for _, c := range items {
		if term != "" && !containsAny(term, c.Name, c.Email, c.Phone) {
			continue
		}
		if !statusMatches(f.Status, string(c.Status)) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FilterAppointments returns the appointments matching f, preserving input
// order. The date filter compares calendar days in loc.
func FilterAppointments(items []apiclient.Appointment, f AppointmentFilter, loc *time.Location) []apiclient.Appointment {
	if loc == nil {
		loc = time.Local
	}
	term := normalizeTerm(f.Search)
	out := make([]apiclient.Appointment, 0, len(items))
	for _, a := range items {
		if term != "" {
			var name, email string
			if a.Client != nil {
				name, email = a.Client.Name, a.Client.Email
			}
			if !containsAny(term, name, a.Notes, email) {
				continue
			}
		}
		if !statusMatches(f.Status, string(a.Status)) {
			continue
		}
		if f.Date != nil && !SameDay(a.Time, *f.Date, loc) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// SameDay reports whether a and b fall on the same year, month and day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Page is one window of a filtered collection.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns items[(page-1)*size, page*size). Pages outside the range
// are empty rather than clamped.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	p := Page[T]{Items: []T{}, Page: page, PageSize: pageSize, Total: len(items)}
	if pageSize <= 0 {
		return p
	}
	p.TotalPages = int(math.Ceil(float64(len(items)) / float64(pageSize)))
	if page < 1 {
		return p
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return p
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	p.Items = append(p.Items, items[start:end]...)
	return p
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsAny(term string, fields ...string) bool {
	for _, f := range fields {
		if f == "" {
			continue
		}
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func statusMatches(filter, status string) bool {
	filter = strings.TrimSpace(filter)
	return filter == "" || filter == StatusAll || filter == status
}
