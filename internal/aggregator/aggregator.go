// Package aggregator merges every request source into one ordered feed.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/hrportal/internal/metrics"
	"stealthcompany.com/hrportal/internal/requests"
	"stealthcompany.com/hrportal/internal/sources"
)

// Source is one backend adapter.
type Source interface {
	Kind() requests.Kind
	Fetch(ctx context.Context, q requests.Query) (sources.Result, error)
}

// Aggregator fans a query out to every source concurrently.
type Aggregator struct {
	sources []Source
	now     func() time.Time
}

// New creates an aggregator over srcs.
func New(srcs ...Source) *Aggregator {
	return &Aggregator{sources: srcs, now: time.Now}
}

type outcome struct {
	result sources.Result
	err    error
}

// Run fetches all sources in parallel, applies the predicates a source did
// not honor, merges and sorts. A failing source is logged and left out; Run
// itself never fails.
func (a *Aggregator) Run(ctx context.Context, q requests.Query) requests.Feed {
	outcomes := make([]outcome, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			outcomes[i] = fetch(ctx, src, q)
		}(i, src)
	}
	wg.Wait()

	feed := requests.Feed{
		Items:       []requests.Request{},
		GeneratedAt: a.now(),
	}
	for i, src := range a.sources {
		o := outcomes[i]
		if o.err != nil {
			fetchErr := &requests.SourceFetchError{Kind: src.Kind(), Err: o.err}
			log.Warn().Err(fetchErr).Str("kind", string(src.Kind())).Msg("Source failed, serving degraded feed")
			feed.FailedSources = append(feed.FailedSources, src.Kind())
			feed.TotalIsApproximate = true
			continue
		}

		items := requests.ApplyExcept(o.result.Items, q.Criteria, o.result.Honored)
		feed.Items = append(feed.Items, items...)

		if o.result.Total != nil {
			feed.ApproximateTotal += *o.result.Total
		} else {
			feed.ApproximateTotal += len(items)
			feed.TotalIsApproximate = true
		}
	}

	requests.Sort(feed.Items)
	metrics.RecordFeed(len(feed.Items), feed.Degraded())

	log.Debug().
		Int("items", len(feed.Items)).
		Int("approximateTotal", feed.ApproximateTotal).
		Int("failed", len(feed.FailedSources)).
		Msg("Feed aggregated")

	return feed
}

func fetch(ctx context.Context, src Source, q requests.Query) (o outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o = outcome{err: fmt.Errorf("source panicked: %v", r)}
		}
		metrics.RecordSourceFetch(string(src.Kind()), len(o.result.Items), time.Since(start), o.err)
	}()

	res, err := src.Fetch(ctx, q)
	return outcome{result: res, err: err}
}
