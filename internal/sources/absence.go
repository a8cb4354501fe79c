package sources

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/backend"
	"stealthcompany.com/hrportal/internal/requests"
)

const displayDate = "02/01/2006"

// AbsenceLister is the part of the absence backend the adapter reads from.
type AbsenceLister interface {
	ListByEmployee(ctx context.Context, employeeID int64) ([]backend.AbsenceRecord, error)
}

// AbsenceAdapter serves absence requests. The backend only lists by
// employee, so nothing is honored and no total is reported.
type AbsenceAdapter struct {
	lister AbsenceLister
	loc    *time.Location
}

// NewAbsenceAdapter creates the adapter.
func NewAbsenceAdapter(lister AbsenceLister, loc *time.Location) *AbsenceAdapter {
	if loc == nil {
		loc = time.UTC
	}
	return &AbsenceAdapter{lister: lister, loc: loc}
}

// Kind implements the aggregator's source contract.
func (a *AbsenceAdapter) Kind() requests.Kind { return requests.KindAbsence }

// Fetch lists every absence of q.EmployeeID. The backend does not paginate,
// so the whole list is merged into the first page only; later pages and
// queries without an employee yield an empty result.
func (a *AbsenceAdapter) Fetch(ctx context.Context, q requests.Query) (Result, error) {
	if q.EmployeeID <= 0 {
		log.Debug().Msg("No employee selected, skipping absence listing")
		return Result{Items: []requests.Request{}}, nil
	}
	if q.Page.Number > 0 {
		log.Debug().Int("page", q.Page.Number).Msg("Absences are merged into the first page only")
		return Result{Items: []requests.Request{}}, nil
	}

	records, err := a.lister.ListByEmployee(ctx, q.EmployeeID)
	if err != nil {
		return Result{}, err
	}

	items := make([]requests.Request, 0, len(records))
	for _, rec := range records {
		r, ok := a.normalize(rec)
		if !ok {
			continue
		}
		items = append(items, r)
	}
	return Result{Items: items}, nil
}

func (a *AbsenceAdapter) normalize(rec backend.AbsenceRecord) (requests.Request, bool) {
	logger := log.With().Str("kind", string(requests.KindAbsence)).Int64("id", rec.ID).Logger()

	status, err := requests.ParseStatus(rec.Status)
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping absence with unknown status")
		return requests.Request{}, false
	}

	start := optionalTimestamp(rec.StartDate, a.loc)
	end := optionalTimestamp(rec.EndDate, a.loc)

	var createdAt time.Time
	switch {
	case strings.TrimSpace(rec.CreatedAt) != "":
		createdAt, err = parseTimestamp(rec.CreatedAt, a.loc)
	case start != nil:
		// older records carry no creation time; the first day stands in
		createdAt = *start
	default:
		err = fmt.Errorf("no creation time and no start date")
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Skipping absence without creation time")
		return requests.Request{}, false
	}

	typ := normalizeType(rec.AbsenceType, requests.TypeOtherAbsence)

	return requests.Request{
		ID:              rec.ID,
		Kind:            requests.KindAbsence,
		Type:            typ,
		Title:           absenceTitle(typ, start, end),
		Description:     absenceDescription(rec.Reason, rec.Days, start, end),
		Status:          status,
		RequesterName:   rec.EmployeeName,
		CreatedAt:       createdAt,
		DecidedAt:       optionalTimestamp(rec.ReviewedAt, a.loc),
		DecisionComment: rec.ReviewComment,
		DecidedBy:       rec.ReviewedBy,
		AttachmentRef:   rec.CertificateURL,
	}, true
}

// absenceTitle is "<label> <start> - <end>", or a single date for one-day absences.
func absenceTitle(typ requests.Type, start, end *time.Time) string {
	label := typ.Label()
	switch {
	case start == nil && end == nil:
		return label
	case start == nil:
		return label + " " + end.Format(displayDate)
	case end == nil || requests.StartOfDay(*start).Equal(requests.StartOfDay(*end)):
		return label + " " + start.Format(displayDate)
	}
	return fmt.Sprintf("%s %s - %s", label, start.Format(displayDate), end.Format(displayDate))
}

func absenceDescription(reason string, days int, start, end *time.Time) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	if days <= 0 && start != nil && end != nil {
		days = int(math.Round(requests.StartOfDay(*end).Sub(requests.StartOfDay(*start)).Hours()/24)) + 1
	}
	switch {
	case days == 1:
		return "1 day"
	case days > 1:
		return fmt.Sprintf("%d days", days)
	}
	return ""
}
