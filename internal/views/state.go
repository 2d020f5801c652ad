package views

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize matches the dashboard tables' initial page size.
const DefaultPageSize = 5

// DateLayout is the calendar-day format accepted for the date filter.
const DateLayout = "2006-01-02"

// State is the view criteria for one table. Changing any criterion other
// than the page moves back to page 1; the page itself is never clamped.
type State struct {
	Search   string     `json:"search"`
	Status   string     `json:"status"`
	Date     *time.Time `json:"date,omitempty"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// NewState returns the initial state for a table.
func NewState(pageSize int) State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return State{Status: StatusAll, Page: 1, PageSize: pageSize}
}

func (s *State) SetSearch(term string) {
	s.Search = term
	s.Page = 1
}

func (s *State) SetStatus(status string) {
	if strings.TrimSpace(status) == "" {
		status = StatusAll
	}
	s.Status = status
	s.Page = 1
}

func (s *State) SetDate(day time.Time) {
	s.Date = &day
	s.Page = 1
}

func (s *State) ClearDate() {
	s.Date = nil
	s.Page = 1
}

func (s *State) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	s.PageSize = size
	s.Page = 1
}

func (s *State) SetPage(page int) {
	s.Page = page
}

// Reset clears every filter and returns to page 1, keeping the page size.
func (s *State) Reset() {
	*s = NewState(s.PageSize)
}

// ClientFilter projects the state onto the client filter.
func (s State) ClientFilter() ClientFilter {
	return ClientFilter{Search: s.Search, Status: s.Status}
}

// AppointmentFilter projects the state onto the appointment filter.
func (s State) AppointmentFilter() AppointmentFilter {
	return AppointmentFilter{Search: s.Search, Status: s.Status, Date: s.Date}
}

// ParseState builds a State from query parameters (search, status, date,
// page, page_size). Filters are applied first, so a request that sets both
// a filter and an explicit page keeps the page it asked for.
func ParseState(q url.Values, defaultPageSize int, loc *time.Location) (State, error) {
	if loc == nil {
		loc = time.Local
	}
	s := NewState(defaultPageSize)
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, &ParamError{Param: "page_size", Value: v}
		}
		s.SetPageSize(n)
	}
	if v := q.Get("search"); v != "" {
		s.SetSearch(v)
	}
	if v := q.Get("status"); v != "" {
		s.SetStatus(v)
	}
	if v := q.Get("date"); v != "" {
		day, err := time.ParseInLocation(DateLayout, v, loc)
		if err != nil {
			return s, &ParamError{Param: "date", Value: v}
		}
		s.SetDate(day)
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, &ParamError{Param: "page", Value: v}
		}
		s.SetPage(n)
	}
	return s, nil
}

// ParamError reports a malformed view query parameter.
type ParamError struct {
	Param string
	Value string
}

func (e *ParamError) Error() string {
	return "views: invalid " + e.Param + " " + strconv.Quote(e.Value)
}
