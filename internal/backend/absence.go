package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// AbsenceRecord is one absence entry. Start and end are calendar dates
// (yyyy-mm-dd); timestamps are kept raw.
type AbsenceRecord struct {
	ID             int64  `json:"id"`
	EmployeeID     int64  `json:"employeeId"`
	EmployeeName   string `json:"employeeName"`
	AbsenceType    string `json:"absenceType"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Days           int    `json:"days"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
	ReviewedAt     string `json:"reviewedAt"`
	ReviewComment  string `json:"reviewComment"`
	ReviewedBy     string `json:"reviewedBy"`
	CertificateURL string `json:"certificateUrl"`
}

// AbsenceClient talks to the absence backend. It has no server-side
// filtering and no pagination.
type AbsenceClient struct {
	client
}

// NewAbsenceClient creates a client for baseURL.
func NewAbsenceClient(baseURL string, timeout time.Duration) *AbsenceClient {
	return &AbsenceClient{client: newClient("absence", baseURL, timeout)}
}

// ListByEmployee returns every absence of one employee.
func (c *AbsenceClient) ListByEmployee(ctx context.Context, employeeID int64) ([]AbsenceRecord, error) {
	var records []AbsenceRecord
	if err := c.do(ctx, "list", http.MethodGet, fmt.Sprintf("/absences/employee/%d", employeeID), nil, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []AbsenceRecord{}
	}
	return records, nil
}

// Approve approves absence id. The backend takes no comment.
func (c *AbsenceClient) Approve(ctx context.Context, id int64) error {
	return c.do(ctx, "approve", http.MethodPost, fmt.Sprintf("/absences/%d/approve", id), nil, nil, nil)
}

// Reject rejects absence id with a mandatory comment.
func (c *AbsenceClient) Reject(ctx context.Context, id int64, comment string) error {
	return c.do(ctx, "reject", http.MethodPost, fmt.Sprintf("/absences/%d/reject", id), nil, commentBody{Comment: comment}, nil)
}

// Delete removes a pending absence.
func (c *AbsenceClient) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, fmt.Sprintf("/absences/%d", id), nil, nil, nil)
}
