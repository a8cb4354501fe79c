package sources

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/backend"
	"stealthcompany.com/hrportal/internal/requests"
)

// GenericLister is the part of the generic backend the adapter reads from.
type GenericLister interface {
	List(ctx context.Context, f backend.GenericFilter) (*backend.Page, error)
}

// GenericAdapter serves generic employee requests. The backend filters by
// status and date and paginates, so both predicates are honored.
type GenericAdapter struct {
	lister      GenericLister
	loc         *time.Location
	defaultSize int
}

// NewGenericAdapter creates the adapter. defaultSize applies when a query
// does not set a page size.
func NewGenericAdapter(lister GenericLister, loc *time.Location, defaultSize int) *GenericAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &GenericAdapter{lister: lister, loc: loc, defaultSize: defaultSize}
}

// Kind implements the aggregator's source contract.
func (a *GenericAdapter) Kind() requests.Kind { return requests.KindGeneric }

// Fetch lists one page with the criteria forwarded to the backend.
func (a *GenericAdapter) Fetch(ctx context.Context, q requests.Query) (Result, error) {
	filter := backend.GenericFilter{
		Page: q.Page.Number,
		Size: q.Page.Size,
	}
	if filter.Size <= 0 {
		filter.Size = a.defaultSize
	}
	if q.Criteria.HasStatus() {
		filter.Status = string(*q.Criteria.Status)
	}
	if q.Criteria.HasDateRange() {
		filter.DateFrom = q.Criteria.DateRange.From
		filter.DateTo = q.Criteria.DateRange.To
	}

	page, err := a.lister.List(ctx, filter)
	if err != nil {
		return Result{}, err
	}

	items := make([]requests.Request, 0, len(page.Content))
	for _, rec := range page.Content {
		r, ok := a.normalize(rec)
		if !ok {
			continue
		}
		items = append(items, r)
	}

	total := page.TotalElements
	return Result{
		Items:   items,
		Honored: requests.Honored{Status: true, DateRange: true},
		Total:   &total,
	}, nil
}

func (a *GenericAdapter) normalize(rec backend.GenericRecord) (requests.Request, bool) {
	status, err := requests.ParseStatus(rec.Status)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(requests.KindGeneric)).Int64("id", rec.ID).Msg("Skipping request with unknown status")
		return requests.Request{}, false
	}
	createdAt, err := parseTimestamp(rec.CreatedAt, a.loc)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(requests.KindGeneric)).Int64("id", rec.ID).Msg("Skipping request without creation time")
		return requests.Request{}, false
	}

	typ := normalizeType(rec.RequestType, requests.TypeOther)
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = typ.Label()
	}

	return requests.Request{
		ID:              rec.ID,
		Kind:            requests.KindGeneric,
		Type:            typ,
		Title:           title,
		Description:     strings.TrimSpace(rec.Description),
		Status:          status,
		Priority:        requests.ParsePriority(rec.Priority),
		RequesterName:   rec.EmployeeName,
		CreatedAt:       createdAt,
		DecidedAt:       optionalTimestamp(rec.ResolvedAt, a.loc),
		DecisionComment: rec.ResolutionComment,
		DecidedBy:       rec.ResolvedBy,
		AttachmentRef:   rec.AttachmentURL,
	}, true
}
