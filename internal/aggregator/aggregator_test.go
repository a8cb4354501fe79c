package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/sources"
)

type stubSource struct {
	kind   requests.Kind
	result sources.Result
	err    error
	delay  time.Duration
	active *int32
	peak   *int32
}

func (s stubSource) Kind() requests.Kind { return s.kind }

func (s stubSource) Fetch(ctx context.Context, _ requests.Query) (sources.Result, error) {
	if s.active != nil {
		n := atomic.AddInt32(s.active, 1)
		for {
			p := atomic.LoadInt32(s.peak)
			if n <= p || atomic.CompareAndSwapInt32(s.peak, p, n) {
				break
			}
		}
		defer atomic.AddInt32(s.active, -1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.result, s.err
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func intPtr(n int) *int { return &n }

func statusPtr(s requests.Status) *requests.Status { return &s }

// Two generic items at 10:00 and 09:00, one absence at 09:30.
func scenarioSources() (stubSource, stubSource) {
	generic := stubSource{kind: requests.KindGeneric, result: sources.Result{
		Items: []requests.Request{
			{ID: 1, Kind: requests.KindGeneric, Status: requests.StatusPending, CreatedAt: at("2024-05-01T10:00:00Z")},
			{ID: 2, Kind: requests.KindGeneric, Status: requests.StatusPending, CreatedAt: at("2024-05-01T09:00:00Z")},
		},
		Honored: requests.Honored{Status: true, DateRange: true},
		Total:   intPtr(2),
	}}
	absence := stubSource{kind: requests.KindAbsence, result: sources.Result{
		Items: []requests.Request{
			{ID: 1, Kind: requests.KindAbsence, Status: requests.StatusApproved, CreatedAt: at("2024-05-01T09:30:00Z")},
		},
	}}
	return generic, absence
}

func keys(items []requests.Request) []requests.Key {
	out := make([]requests.Key, 0, len(items))
	for _, r := range items {
		out = append(out, r.Key())
	}
	return out
}

func TestRunMergesInFeedOrder(t *testing.T) {
	generic, absence := scenarioSources()

	feed := New(generic, absence).Run(context.Background(), requests.Query{})

	want := []requests.Key{
		{Kind: requests.KindGeneric, ID: 1},
		{Kind: requests.KindAbsence, ID: 1},
		{Kind: requests.KindGeneric, ID: 2},
	}
	if diff := cmp.Diff(want, keys(feed.Items)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, feed.ApproximateTotal)
	assert.True(t, feed.TotalIsApproximate)
	assert.False(t, feed.Degraded())
}

func TestRunFiltersUnhonoredPredicates(t *testing.T) {
	generic, absence := scenarioSources()
	// the generic backend would have filtered server-side
	generic.result.Items = nil
	generic.result.Total = intPtr(0)

	feed := New(generic, absence).Run(context.Background(), requests.Query{
		Criteria: requests.FilterCriteria{Status: statusPtr(requests.StatusApproved)},
	})

	require.Len(t, feed.Items, 1)
	assert.Equal(t, requests.Key{Kind: requests.KindAbsence, ID: 1}, feed.Items[0].Key())
	assert.Equal(t, 1, feed.ApproximateTotal)
}

func TestRunDoesNotRefilterHonoredPredicates(t *testing.T) {
	// a backend that honors status is trusted even if the item disagrees
	src := stubSource{kind: requests.KindGeneric, result: sources.Result{
		Items:   []requests.Request{{ID: 5, Kind: requests.KindGeneric, Status: requests.StatusPending, CreatedAt: at("2024-05-01T10:00:00Z")}},
		Honored: requests.Honored{Status: true},
		Total:   intPtr(40),
	}}

	feed := New(src).Run(context.Background(), requests.Query{
		Criteria: requests.FilterCriteria{Status: statusPtr(requests.StatusApproved)},
	})

	assert.Len(t, feed.Items, 1)
	assert.Equal(t, 40, feed.ApproximateTotal)
	assert.False(t, feed.TotalIsApproximate)
}

func TestRunToleratesFailingSource(t *testing.T) {
	generic, absence := scenarioSources()
	absence.err = errors.New("absence backend unavailable")

	feed := New(generic, absence).Run(context.Background(), requests.Query{})

	assert.Equal(t, []requests.Key{
		{Kind: requests.KindGeneric, ID: 1},
		{Kind: requests.KindGeneric, ID: 2},
	}, keys(feed.Items))
	assert.Equal(t, []requests.Kind{requests.KindAbsence}, feed.FailedSources)
	assert.True(t, feed.Degraded())
	assert.Equal(t, 2, feed.ApproximateTotal)
}

func TestRunAllSourcesFailing(t *testing.T) {
	boom := errors.New("down")
	feed := New(
		stubSource{kind: requests.KindGeneric, err: boom},
		stubSource{kind: requests.KindAbsence, err: boom},
	).Run(context.Background(), requests.Query{})

	assert.NotNil(t, feed.Items)
	assert.Empty(t, feed.Items)
	assert.Len(t, feed.FailedSources, 2)
}

type panickingSource struct{}

func (panickingSource) Kind() requests.Kind { return requests.KindAbsence }

func (panickingSource) Fetch(context.Context, requests.Query) (sources.Result, error) {
	panic("nil map")
}

func TestRunRecoversFromPanickingSource(t *testing.T) {
	generic, _ := scenarioSources()
	feed := New(generic, panickingSource{}).Run(context.Background(), requests.Query{})

	assert.Len(t, feed.Items, 2)
	assert.Equal(t, []requests.Kind{requests.KindAbsence}, feed.FailedSources)
}

func TestRunFetchesConcurrently(t *testing.T) {
	var active, peak int32
	generic, absence := scenarioSources()
	generic.delay, absence.delay = 50*time.Millisecond, 50*time.Millisecond
	generic.active, generic.peak = &active, &peak
	absence.active, absence.peak = &active, &peak

	New(generic, absence).Run(context.Background(), requests.Query{})

	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}
