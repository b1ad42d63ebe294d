package usecase

import (
	"strings"

	"github.com/google/uuid"

	"github.com/totegamma/vidcatalog/internal/domain"
)

// ListParams are the recognized listing parameters, as received.
type ListParams struct {
	OwnerID  string
	Query    string
	SortBy   string
	SortType string
	Page     int
	Limit    int
}

// BuildStages translates listing parameters into an ordered stage list:
// owner filter, text filter, published filter, sort.
func BuildStages(params ListParams) ([]domain.Stage, error) {
	stages := make([]domain.Stage, 0, 4)

	if params.OwnerID != "" {
		ownerID, err := uuid.Parse(params.OwnerID)
		if err != nil {
			return nil, domain.InvalidArgumentError("invalid user id")
		}
		stages = append(stages, domain.Stage{Kind: domain.StageOwner, OwnerID: ownerID})
	}

	if params.Query != "" {
		stages = append(stages, domain.Stage{Kind: domain.StageText, Text: params.Query})
	}

	// public listings never include unpublished records
	stages = append(stages, domain.Stage{Kind: domain.StagePublished, Published: true})

	sort := domain.Stage{Kind: domain.StageSort, SortField: domain.SortFieldCreatedAt, SortDir: domain.SortDesc}
	if params.SortBy != "" && params.SortType != "" {
		sort.SortField = strings.TrimSpace(params.SortBy)
		sort.SortDir = domain.SortAsc
		if params.SortType == "desc" {
			sort.SortDir = domain.SortDesc
		}
	}
	stages = append(stages, sort)

	return stages, nil
}
