package github

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// IsWorkflowFile reports whether workflow names a workflow file
// (build.yml, .github/workflows/build.yaml) rather than a display name.
func IsWorkflowFile(workflow string) bool {
	ext := strings.ToLower(path.Ext(workflow))
	return ext == ".yml" || ext == ".yaml"
}

// ListWorkflowRuns returns one page of workflow runs.
//
// A workflow file in q.Workflow uses /actions/workflows/{file}/runs; any other
// value lists all runs of the repository, and the caller filters by name.
func (c *Client) ListWorkflowRuns(ctx context.Context, q RunsQuery) (RunsPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 30
	}

	p := c.repoPath("actions", "runs")
	if IsWorkflowFile(q.Workflow) {
		p = c.repoPath("actions", "workflows", path.Base(q.Workflow), "runs")
	}

	query := url.Values{}
	if q.HeadSHA != "" {
		query.Set("head_sha", q.HeadSHA)
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	query.Set("per_page", strconv.Itoa(q.PerPage))
	query.Set("page", strconv.Itoa(q.Page))

	var body WorkflowRunsResponse
	resp, err := c.getJSON(ctx, p, query, &body)
	if err != nil {
		return RunsPage{}, fmt.Errorf("list workflow runs (page %d): %w", q.Page, err)
	}

	hasNext := q.Page*q.PerPage < body.TotalCount
	if link := resp.Header.Get("Link"); link != "" {
		hasNext = strings.Contains(link, `rel="next"`)
	}

	return RunsPage{
		Runs:       body.WorkflowRuns,
		TotalCount: body.TotalCount,
		HasNext:    hasNext && len(body.WorkflowRuns) > 0,
	}, nil
}
