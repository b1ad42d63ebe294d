package domain

import "github.com/google/uuid"

type StageKind int

const (
	StageOwner StageKind = iota + 1
	StageText
	StagePublished
	StageSort
)

func (k StageKind) String() string {
	switch k {
	case StageOwner:
		return "owner"
	case StageText:
		return "text"
	case StagePublished:
		return "published"
	case StageSort:
		return "sort"
	default:
		return "unknown"
	}
}

type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

const SortFieldCreatedAt = "createdAt"

// Stage is one step of a catalog query. Only the fields relevant to Kind are set.
type Stage struct {
	Kind      StageKind
	OwnerID   uuid.UUID
	Text      string
	Published bool
	SortField string
	SortDir   SortDirection
}

// PageRequest is 1-indexed.
type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

type Page[T any] struct {
	Items       []T   `json:"items"`
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	TotalCount  int64 `json:"totalCount"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPage fills the derived page info from the total count.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if req.PageSize > 0 {
		totalPages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}
	return Page[T]{
		Items:       items,
		Page:        req.Page,
		PageSize:    req.PageSize,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNextPage: req.Page < totalPages,
		HasPrevPage: req.Page > 1,
	}
}
