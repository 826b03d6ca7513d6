package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineFilters narrows the audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// Entry is one recorded administrative action.
type Entry struct {
	ID       uuid.UUID
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
}

// Result bundles a timeline page with its paging metadata.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}
