package locator

import (
	"context"

	"github.com/rescale/commit-semver/internal/github"
)

// runPages yields pages of workflow runs one at a time, newest first as the
// API reports them. It is created per Locate call and read once.
type runPages struct {
	source   RunSource
	query    github.RunsQuery
	maxPages int
	fetched  int
	done     bool
}

func newRunPages(source RunSource, query github.RunsQuery, maxPages int) *runPages {
	query.Page = 1
	return &runPages{source: source, query: query, maxPages: maxPages}
}

// Next returns the next page. ok is false once the API has no more pages or
// the page limit is reached.
func (p *runPages) Next(ctx context.Context) (runs []github.WorkflowRun, ok bool, err error) {
	if p.done || p.fetched >= p.maxPages {
		return nil, false, nil
	}

	page, err := p.source.ListWorkflowRuns(ctx, p.query)
	if err != nil {
		p.done = true
		return nil, false, err
	}
	p.fetched++
	p.query.Page++
	if !page.HasNext {
		p.done = true
	}
	return page.Runs, true, nil
}

// Fetched returns how many pages have been read.
func (p *runPages) Fetched() int {
	return p.fetched
}

// Exhausted reports whether iteration ended because the API ran out of pages
// rather than because of the page limit.
func (p *runPages) Exhausted() bool {
	return p.done
}
