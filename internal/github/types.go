package github

import "time"

const (
	// RunStatusCompleted is the status of a finished run.
	RunStatusCompleted = "completed"
	// RunStatusInProgress is the status of a running run.
	RunStatusInProgress = "in_progress"
	// RunStatusSuccess is accepted by the list endpoint as a status filter and
	// selects completed runs whose conclusion is success.
	RunStatusSuccess = "success"
	// ConclusionSuccess is the conclusion of a successful completed run.
	ConclusionSuccess = "success"
)

// WorkflowRun represents a GitHub Actions workflow run.
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"` // .github/workflows/<file>.yml
	HeadBranch string    `json:"head_branch"`
	HeadSHA    string    `json:"head_sha"`
	Status     string    `json:"status"`     // queued, in_progress, completed
	Conclusion string    `json:"conclusion"` // success, failure, cancelled, skipped, etc. (only for completed runs)
	WorkflowID int64     `json:"workflow_id"`
	URL        string    `json:"html_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	RunNumber  int       `json:"run_number"`
	Event      string    `json:"event"`
	RunAttempt int       `json:"run_attempt"`
}

// WorkflowRunsResponse represents the API response for listing workflow runs.
type WorkflowRunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// Artifact represents an artifact uploaded by a workflow run.
type Artifact struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	SizeInBytes        int64     `json:"size_in_bytes"`
	ArchiveDownloadURL string    `json:"archive_download_url"`
	Expired            bool      `json:"expired"`
	CreatedAt          time.Time `json:"created_at"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// ArtifactsResponse represents the API response for listing run artifacts.
type ArtifactsResponse struct {
	TotalCount int        `json:"total_count"`
	Artifacts  []Artifact `json:"artifacts"`
}

// RunsQuery selects one page of workflow runs.
type RunsQuery struct {
	// Workflow is a workflow file name (build.yml) or a display name. File
	// names go to the workflow-scoped endpoint; display names are left to the
	// caller to filter.
	Workflow string
	HeadSHA  string
	Status   string
	PerPage  int
	Page     int // 1-based
}

// RunsPage is one page of workflow runs in API order.
type RunsPage struct {
	Runs       []WorkflowRun
	TotalCount int
	// HasNext reports whether a later page exists.
	HasNext bool
}
