package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/hrportal/internal/dispatch"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/view"
)

type fakeFeed struct {
	mu   sync.Mutex
	seen []requests.Query
}

func (f *fakeFeed) Query(_ context.Context, q requests.Query) requests.Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, q)
	return requests.Feed{Items: []requests.Request{}}
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeFeed) last() requests.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

type fakeCommands struct {
	mu        sync.Mutex
	err       error
	submitted []dispatch.Command
	cancelled []dispatch.Command
}

func (f *fakeCommands) Submit(_ context.Context, cmd dispatch.Command) (dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, cmd)
	return dispatch.Result{}, f.err
}

func (f *fakeCommands) Cancel(_ context.Context, key requests.Key, current requests.Status, confirmed bool) (dispatch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, dispatch.Command{Key: key, Action: requests.ActionCancel, Current: current, Confirmed: confirmed})
	return dispatch.Result{}, f.err
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeFeed, *fakeCommands) {
	t.Helper()
	feed := &fakeFeed{}
	cmds := &fakeCommands{}
	router := SetupRoutes(Deps{
		Feed:            feed,
		Commands:        cmds,
		Views:           view.NewRegistry(feed, nil, time.UTC, 20),
		Location:        time.UTC,
		DefaultPageSize: 20,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, feed, cmds
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestListRequestsParsesLenientQuery(t *testing.T) {
	srv, feed, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/requests?status=approved&from=1/2/24&to=29.02.2024&page=1&size=5&employee=9", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	q := feed.last()
	require.NotNil(t, q.Criteria.Status)
	assert.Equal(t, requests.StatusApproved, *q.Criteria.Status)
	require.NotNil(t, q.Criteria.DateRange)
	assert.True(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Equal(*q.Criteria.DateRange.From))
	assert.True(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC).Equal(*q.Criteria.DateRange.To))
	assert.Equal(t, requests.Page{Number: 1, Size: 5}, q.Page)
	assert.Equal(t, int64(9), q.EmployeeID)
}

func TestListRequestsRejectsBadInput(t *testing.T) {
	srv, feed, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{name: "malformed date", query: "from=aa/bb", field: "from"},
		{name: "inverted range", query: "from=10/02/24&to=01/02/24", field: "dateRange"},
		{name: "unknown status", query: "status=LOST", field: "status"},
		{name: "negative page", query: "page=-1", field: "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, srv.URL+"/api/requests?"+tt.query, "")
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			assert.Equal(t, tt.field, body["field"])
		})
	}
	assert.Zero(t, feed.count())
}

func TestDecisionRoutesCommand(t *testing.T) {
	srv, _, cmds := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/requests/generic/7/decision", `{"action":"approve","comment":"ok","currentStatus":"PENDING"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, cmds.submitted, 1)
	got := cmds.submitted[0]
	assert.Equal(t, requests.Key{Kind: requests.KindGeneric, ID: 7}, got.Key)
	assert.Equal(t, requests.ActionApprove, got.Action)
	assert.Equal(t, "ok", got.Comment)
	assert.Equal(t, requests.StatusPending, got.Current)
}

func TestDecisionErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &requests.ValidationError{Field: "action", Reason: "same status"}, want: http.StatusUnprocessableEntity},
		{name: "in flight", err: requests.ErrCommandInFlight, want: http.StatusConflict},
		{name: "backend", err: &requests.CommandError{Key: requests.Key{Kind: requests.KindAbsence, ID: 3}, Action: requests.ActionReject, Err: errors.New("503")}, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, cmds := newTestServer(t)
			cmds.err = tt.err

			resp, body := do(t, http.MethodPost, srv.URL+"/api/requests/absences/3/decision", `{"action":"reject","comment":"no","currentStatus":"PENDING"}`)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestDecisionRejectsCancelAndUnknownKind(t *testing.T) {
	srv, _, cmds := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/requests/generic/7/decision", `{"action":"cancel","currentStatus":"PENDING"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/requests/payroll/7/decision", `{"action":"approve","currentStatus":"PENDING"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	assert.Empty(t, cmds.submitted)
}

func TestCancelPassesConfirmation(t *testing.T) {
	srv, _, cmds := newTestServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/api/requests/absence/12/cancel", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, cmds.cancelled, 1)
	assert.Equal(t, requests.Key{Kind: requests.KindAbsence, ID: 12}, cmds.cancelled[0].Key)
	assert.Equal(t, requests.StatusPending, cmds.cancelled[0].Current)
	assert.True(t, cmds.cancelled[0].Confirmed)
}

func TestViewLifecycle(t *testing.T) {
	srv, feed, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/views", `{"employeeId":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	base := srv.URL + "/api/views/" + id
	queries := feed.count()

	resp, body = do(t, http.MethodPut, base+"/range/text", `{"side":"start","text":"01/01/24"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["parsed"])

	resp, body = do(t, http.MethodPut, base+"/range/text", `{"side":"end","text":"xx/yy"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["parsed"])
	assert.Equal(t, queries, feed.count(), "typing does not query")

	resp, _ = do(t, http.MethodPost, base+"/range/commit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	q := feed.last()
	require.NotNil(t, q.Criteria.DateRange)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(*q.Criteria.DateRange.From))
	assert.Nil(t, q.Criteria.DateRange.To)
	assert.Equal(t, int64(5), q.EmployeeID)

	resp, _ = do(t, http.MethodPut, base+"/status", `{"status":"pending"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, feed.last().Criteria.Status)

	resp, _ = do(t, http.MethodDelete, base+"/filters", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, requests.FilterCriteria{}, feed.last().Criteria)

	resp, _ = do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvertedCalendarCommitIsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	_, body := do(t, http.MethodPost, srv.URL+"/api/views", "")
	base := srv.URL + "/api/views/" + body["id"].(string)

	resp, _ := do(t, http.MethodPut, base+"/range/calendar", `{"from":"2024-02-10","to":"2024-02-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/range/commit", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "dateRange", body["field"])
}
