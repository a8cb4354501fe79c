package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// GenericRecord is one employee request as the generic backend serves it.
// Timestamps are kept raw; the adapter parses them in the portal's zone.
type GenericRecord struct {
	ID                int64  `json:"id"`
	RequestType       string `json:"requestType"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            string `json:"status"`
	Priority          string `json:"priority"`
	EmployeeName      string `json:"employeeName"`
	CreatedAt         string `json:"createdAt"`
	ResolvedAt        string `json:"resolvedAt"`
	ResolutionComment string `json:"resolutionComment"`
	ResolvedBy        string `json:"resolvedBy"`
	AttachmentURL     string `json:"attachmentUrl"`
}

// Page is the paginated envelope of the generic backend.
type Page struct {
	Content       []GenericRecord `json:"content"`
	TotalElements int             `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
	Number        int             `json:"number"`
	Size          int             `json:"size"`
}

// GenericFilter is forwarded as query parameters. Zero values are omitted.
type GenericFilter struct {
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Size     int
}

type commentBody struct {
	Comment string `json:"comment,omitempty"`
}

// GenericClient talks to the generic employee requests backend.
type GenericClient struct {
	client
}

// NewGenericClient creates a client for baseURL.
func NewGenericClient(baseURL string, timeout time.Duration) *GenericClient {
	return &GenericClient{client: newClient("generic", baseURL, timeout)}
}

// List returns one page of requests filtered server-side.
func (c *GenericClient) List(ctx context.Context, f GenericFilter) (*Page, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.DateFrom != nil {
		q.Set("dateFrom", f.DateFrom.Format(time.DateOnly))
	}
	if f.DateTo != nil {
		q.Set("dateTo", f.DateTo.Format(time.DateOnly))
	}
	q.Set("page", strconv.Itoa(f.Page))
	if f.Size > 0 {
		q.Set("size", strconv.Itoa(f.Size))
	}

	var page Page
	if err := c.do(ctx, "list", http.MethodGet, "/requests", q, nil, &page); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []GenericRecord{}
	}
	return &page, nil
}

// Approve approves request id. The comment is optional.
func (c *GenericClient) Approve(ctx context.Context, id int64, comment string) error {
	return c.do(ctx, "approve", http.MethodPost, fmt.Sprintf("/requests/%d/approve", id), nil, commentBody{Comment: comment}, nil)
}

// Reject rejects request id with a mandatory comment.
func (c *GenericClient) Reject(ctx context.Context, id int64, comment string) error {
	return c.do(ctx, "reject", http.MethodPost, fmt.Sprintf("/requests/%d/reject", id), nil, commentBody{Comment: comment}, nil)
}

// Cancel withdraws a pending request.
func (c *GenericClient) Cancel(ctx context.Context, id int64) error {
	return c.do(ctx, "cancel", http.MethodPost, fmt.Sprintf("/requests/%d/cancel", id), nil, nil, nil)
}
