// Package requests holds the common request envelope shared by every source,
// the filter engine, the feed ordering and the decision state machine.
package requests

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the workflow state of a request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus is case-insensitive. The empty string is not a status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// Priority is optional; PriorityNone marks sources without one.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ParsePriority maps unknown or empty values to PriorityNone.
func ParsePriority(s string) Priority {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p
	}
	return PriorityNone
}

// Type is the source-specific request subtype.
type Type string

const (
	TypeCertificate    Type = "CERTIFICATE"
	TypeSalaryRaise    Type = "SALARY_RAISE"
	TypeStudyPermit    Type = "STUDY_PERMIT"
	TypeScheduleChange Type = "SCHEDULE_CHANGE"
	TypeEquipment      Type = "EQUIPMENT"
	TypeTraining       Type = "TRAINING"
	TypeOther          Type = "OTHER"

	TypeVacation       Type = "VACATION"
	TypeMedicalLeave   Type = "MEDICAL_LEAVE"
	TypePersonalLeave  Type = "PERSONAL_LEAVE"
	TypeMaternityLeave Type = "MATERNITY_LEAVE"
	TypePaternityLeave Type = "PATERNITY_LEAVE"
	TypeStudyLeave     Type = "STUDY_LEAVE"
	TypeBereavement    Type = "BEREAVEMENT"
	TypeOtherAbsence   Type = "OTHER_ABSENCE"
)

var typeLabels = map[Type]string{
	TypeCertificate:    "Certificate",
	TypeSalaryRaise:    "Salary raise",
	TypeStudyPermit:    "Study permit",
	TypeScheduleChange: "Schedule change",
	TypeEquipment:      "Equipment",
	TypeTraining:       "Training",
	TypeOther:          "Other request",
	TypeVacation:       "Vacation",
	TypeMedicalLeave:   "Medical leave",
	TypePersonalLeave:  "Personal leave",
	TypeMaternityLeave: "Maternity leave",
	TypePaternityLeave: "Paternity leave",
	TypeStudyLeave:     "Study leave",
	TypeBereavement:    "Bereavement leave",
	TypeOtherAbsence:   "Absence",
}

// Label is a human readable name for the subtype. Unknown subtypes fall back
// to a title-cased version of the raw value.
func (t Type) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	raw := strings.ToLower(strings.ReplaceAll(string(t), "_", " "))
	if raw == "" {
		return "Request"
	}
	return strings.ToUpper(raw[:1]) + raw[1:]
}

// Request is the normalized envelope every source adapter produces.
type Request struct {
	ID              int64      `json:"id"`
	Kind            Kind       `json:"kind"`
	Type            Type       `json:"requestType"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority,omitempty"`
	RequesterName   string     `json:"requesterName"`
	CreatedAt       time.Time  `json:"createdAt"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	DecisionComment string     `json:"decisionComment,omitempty"`
	DecidedBy       string     `json:"decidedBy,omitempty"`
	AttachmentRef   string     `json:"attachmentRef,omitempty"`
}

// Key returns the composite identity of r.
func (r Request) Key() Key {
	return Key{Kind: r.Kind, ID: r.ID}
}

// DateRange bounds are calendar dates; either may be nil.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// FilterCriteria selects items of the merged feed.
type FilterCriteria struct {
	Status    *Status    `json:"status,omitempty"`
	DateRange *DateRange `json:"dateRange,omitempty"`
}

// HasStatus reports whether a status predicate is set.
func (c FilterCriteria) HasStatus() bool {
	return c.Status != nil && *c.Status != ""
}

// HasDateRange reports whether at least one date bound is set.
func (c FilterCriteria) HasDateRange() bool {
	return c.DateRange != nil && !c.DateRange.IsZero()
}

// Page requests one page of the paginated source. Number is zero based.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

// Query is what the presentation layer hands to the aggregator.
type Query struct {
	Criteria   FilterCriteria `json:"criteria"`
	Page       Page           `json:"page"`
	EmployeeID int64          `json:"employeeId"`
}

// CacheKey is stable for equal queries.
func (q Query) CacheKey() string {
	var b strings.Builder
	b.WriteString("status=")
	if q.Criteria.HasStatus() {
		b.WriteString(string(*q.Criteria.Status))
	}
	b.WriteString("|from=")
	if q.Criteria.HasDateRange() && q.Criteria.DateRange.From != nil {
		b.WriteString(q.Criteria.DateRange.From.Format(time.RFC3339))
	}
	b.WriteString("|to=")
	if q.Criteria.HasDateRange() && q.Criteria.DateRange.To != nil {
		b.WriteString(q.Criteria.DateRange.To.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "|page=%d|size=%d|employee=%d", q.Page.Number, q.Page.Size, q.EmployeeID)
	return b.String()
}

// Feed is one logical page of the merged request list.
type Feed struct {
	Items []Request `json:"items"`
	// ApproximateTotal mixes server-reported totals with client-side counts
	// for sources that cannot report one. It can under-count.
	ApproximateTotal   int       `json:"approximateTotal"`
	TotalIsApproximate bool      `json:"totalIsApproximate"`
	FailedSources      []Kind    `json:"failedSources,omitempty"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// Degraded reports whether at least one source failed while building f.
func (f Feed) Degraded() bool {
	return len(f.FailedSources) > 0
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
