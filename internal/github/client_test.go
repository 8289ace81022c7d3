package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"github.com/rescale/commit-semver/internal/config"
	"github.com/rescale/commit-semver/internal/errs"
)

func newTestClient(t *testing.T, serverURL string, maxRetries int) *Client {
	t.Helper()
	cfg := config.Default().GitHub
	cfg.APIURL = serverURL
	cfg.Repository = "acme/widgets"
	cfg.Token = "test-token"
	cfg.MaxRetries = maxRetries

	c, err := NewClient(cfg, &http.Client{Timeout: 5 * time.Second}, zerolog.Nop(),
		WithRetryWait(time.Millisecond, 5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := config.Default().GitHub
	if _, err := NewClient(cfg, &http.Client{}, zerolog.Nop()); !errors.Is(err, config.ErrMissingRepository) {
		t.Errorf("NewClient() without repository error = %v, want ErrMissingRepository", err)
	}

	cfg.Repository = "acme/widgets"
	cfg.APIURL = "not a url"
	if _, err := NewClient(cfg, &http.Client{}, zerolog.Nop()); err == nil {
		t.Error("NewClient() with bad API URL should fail")
	}
}

func TestListWorkflowRuns(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/runs" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("head_sha") != "abc123" || q.Get("status") != "success" || q.Get("per_page") != "50" || q.Get("page") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != "2022-11-28" {
			t.Errorf("X-GitHub-Api-Version = %q", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "commit-semver/") {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Link", `<https://api.github.com/x?page=3>; rel="next", <https://api.github.com/x?page=1>; rel="prev"`)
		writeJSON(t, w, WorkflowRunsResponse{
			TotalCount: 120,
			WorkflowRuns: []WorkflowRun{
				{ID: 7, Name: "generate-version", HeadSHA: "abc123", Status: "completed", Conclusion: "success", CreatedAt: created},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	page, err := c.ListWorkflowRuns(context.Background(), RunsQuery{
		HeadSHA: "abc123",
		Status:  RunStatusSuccess,
		PerPage: 50,
		Page:    2,
	})
	if err != nil {
		t.Fatalf("ListWorkflowRuns() error = %v", err)
	}
	if len(page.Runs) != 1 || page.Runs[0].ID != 7 || !page.Runs[0].CreatedAt.Equal(created) {
		t.Errorf("Runs = %+v", page.Runs)
	}
	if !page.HasNext {
		t.Error("HasNext = false, want true from Link header")
	}
}

func TestListWorkflowRuns_WorkflowFileEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/workflows/release.yml/runs" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(t, w, WorkflowRunsResponse{TotalCount: 1, WorkflowRuns: []WorkflowRun{{ID: 1}}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	page, err := c.ListWorkflowRuns(context.Background(), RunsQuery{Workflow: ".github/workflows/release.yml", PerPage: 100})
	if err != nil {
		t.Fatalf("ListWorkflowRuns() error = %v", err)
	}
	if page.HasNext {
		t.Error("HasNext = true on the only page")
	}
}

func TestIsWorkflowFile(t *testing.T) {
	tests := map[string]bool{
		"build.yml":                      true,
		"BUILD.YAML":                     true,
		".github/workflows/release.yaml": true,
		"generate-version":               false,
		"Build and Test":                 false,
		"yml":                            false,
	}
	for in, want := range tests {
		if got := IsWorkflowFile(in); got != want {
			t.Errorf("IsWorkflowFile(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		header        map[string]string
		wantCalls     int32
		wantTransient bool
		wantInMessage string
	}{
		{"not found", http.StatusNotFound, nil, 1, false, "Not Found"},
		{"forbidden", http.StatusForbidden, nil, 1, false, "actions:read"},
		{"unauthorized", http.StatusUnauthorized, nil, 1, false, "GITHUB_TOKEN"},
		{"server error", http.StatusBadGateway, nil, 3, true, "502"},
		{"secondary rate limit", http.StatusForbidden, map[string]string{"Retry-After": "0"}, 3, true, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				msg := http.StatusText(tt.status)
				if tt.header != nil {
					msg = "You have exceeded a secondary rate limit"
				}
				fmt.Fprintf(w, `{"message":%q}`, msg)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, 2)
			_, err := c.ListWorkflowRuns(context.Background(), RunsQuery{PerPage: 10})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
			if got := errors.Is(err, errs.ErrTransientAPI); got != tt.wantTransient {
				t.Errorf("errors.Is(ErrTransientAPI) = %v, want %v (err: %v)", got, tt.wantTransient, err)
			}
			if !strings.Contains(err.Error(), tt.wantInMessage) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantInMessage)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.Status != tt.status {
				t.Errorf("expected *StatusError with status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestRetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, WorkflowRunsResponse{})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	if _, err := c.ListWorkflowRuns(context.Background(), RunsQuery{}); err != nil {
		t.Fatalf("ListWorkflowRuns() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server calls = %d, want 2", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("wrapped: %w", &StatusError{Status: 404})) {
		t.Error("IsNotFound should see a wrapped 404")
	}
	if IsNotFound(&StatusError{Status: 410}) || IsNotFound(errors.New("404")) {
		t.Error("IsNotFound matched a non-404")
	}
}

func TestListRunArtifacts_Paginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/runs/42/artifacts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			arts := make([]Artifact, 100)
			for i := range arts {
				arts[i] = Artifact{ID: int64(i + 1), Name: fmt.Sprintf("a%d", i)}
			}
			writeJSON(t, w, ArtifactsResponse{TotalCount: 101, Artifacts: arts})
		case "2":
			writeJSON(t, w, ArtifactsResponse{TotalCount: 101, Artifacts: []Artifact{{ID: 500, Name: "version"}}})
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			writeJSON(t, w, ArtifactsResponse{TotalCount: 101})
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	arts, err := c.ListRunArtifacts(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListRunArtifacts() error = %v", err)
	}
	if len(arts) != 101 || arts[100].Name != "version" {
		t.Errorf("got %d artifacts, last %+v", len(arts), arts[len(arts)-1])
	}
}

func TestDownloadArtifact_RedirectDropsAuthorization(t *testing.T) {
	archive := buildZip(t, map[string]string{"version": "1.2.3\n"})

	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("blob storage received Authorization %q", got)
		}
		_, _ = w.Write(archive)
	}))
	defer blob.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widgets/actions/artifacts/9/zip" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("API host did not receive Authorization")
		}
		http.Redirect(w, r, blob.URL+"/signed?sig=abc", http.StatusFound)
	}))
	defer api.Close()

	c := newTestClient(t, api.URL, 0)
	data, err := c.DownloadArtifact(context.Background(), 9)
	if err != nil {
		t.Fatalf("DownloadArtifact() error = %v", err)
	}
	if !bytes.Equal(data, archive) {
		t.Error("downloaded archive differs")
	}
}

func TestDownloadArtifact_RestartsBrokenTransfer(t *testing.T) {
	archive := buildZip(t, map[string]string{"version": "1.2.3\n"})

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// promise more than is sent so the client sees an unexpected EOF
			w.Header().Set("Content-Length", fmt.Sprint(len(archive)+10))
			_, _ = w.Write(archive[:len(archive)/2])
			return
		}
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2)
	data, err := c.DownloadArtifact(context.Background(), 9)
	if err != nil {
		t.Fatalf("DownloadArtifact() error = %v", err)
	}
	if !bytes.Equal(data, archive) {
		t.Error("downloaded archive differs")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDownloadArtifact_NotFoundIsNotRestarted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	_, err := c.DownloadArtifact(context.Background(), 9)
	if !IsNotFound(err) {
		t.Fatalf("DownloadArtifact() error = %v, want not found", err)
	}
	if errors.Is(err, errs.ErrTransientAPI) {
		t.Error("404 must not be transient")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// map order is random; tests that care about "first entry" use one file
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildOrderedZip(t *testing.T, names []string, contents []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(contents[i])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadArtifactFile(t *testing.T) {
	tests := []struct {
		name      string
		names     []string
		contents  []string
		want      string
		wantEntry string
	}{
		{"exact", []string{"notes.txt", "version"}, []string{"x", "1.0.0"}, "1.0.0", "version"},
		{"suffix", []string{"notes.txt", "out/version"}, []string{"x", "2.0.0"}, "2.0.0", "out/version"},
		{"first", []string{"VERSION.txt", "other"}, []string{"3.0.0", "y"}, "3.0.0", "VERSION.txt"},
		{"skips directories", []string{"dir/", "dir/version"}, []string{"", "4.0.0"}, "4.0.0", "dir/version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := buildOrderedZip(t, tt.names, tt.contents)
			entry, data, err := ReadArtifactFile(archive, "version")
			if err != nil {
				t.Fatalf("ReadArtifactFile() error = %v", err)
			}
			if string(data) != tt.want || entry != tt.wantEntry {
				t.Errorf("ReadArtifactFile() = %q from %q, want %q from %q", data, entry, tt.want, tt.wantEntry)
			}
		})
	}
}

func TestReadArtifactFile_Errors(t *testing.T) {
	if _, _, err := ReadArtifactFile([]byte("not a zip"), "version"); err == nil {
		t.Error("expected error for invalid archive")
	}
	if _, _, err := ReadArtifactFile(buildOrderedZip(t, nil, nil), "version"); err == nil {
		t.Error("expected error for empty archive")
	}
	big := strings.Repeat("9", 64*1024+1)
	if _, _, err := ReadArtifactFile(buildZip(t, map[string]string{"version": big}), "version"); err == nil {
		t.Error("expected error for oversized payload")
	}
}
