package github

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/rescale/commit-semver/internal/constants"
	ihttp "github.com/rescale/commit-semver/internal/http"
)

// artifactsPerPage is the page size for run artifact listings (API maximum).
const artifactsPerPage = 100

// ListRunArtifacts returns every artifact of a run, following pagination.
func (c *Client) ListRunArtifacts(ctx context.Context, runID int64) ([]Artifact, error) {
	p := c.repoPath("actions", "runs", strconv.FormatInt(runID, 10), "artifacts")

	var all []Artifact
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(artifactsPerPage))
		query.Set("page", strconv.Itoa(page))

		var body ArtifactsResponse
		if _, err := c.getJSON(ctx, p, query, &body); err != nil {
			return nil, fmt.Errorf("list artifacts of run %d: %w", runID, err)
		}
		all = append(all, body.Artifacts...)

		if len(body.Artifacts) == 0 || len(all) >= body.TotalCount {
			return all, nil
		}
	}
}

// DownloadArtifact fetches the zip archive of an artifact. The API answers
// with a redirect to blob storage, which the HTTP client follows. A transfer
// that breaks off while the body is read is started again.
func (c *Client) DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error) {
	p := c.repoPath("actions", "artifacts", strconv.FormatInt(artifactID, 10), "zip")

	retryCfg := ihttp.DefaultConfig()
	retryCfg.MaxRetries = c.bodyAttempts
	retryCfg.InitialDelay = c.retryWaitMin
	retryCfg.MaxDelay = c.retryWaitMax
	retryCfg.OnRetry = func(attempt int, err error, errType ihttp.ErrorType) {
		c.log.Warn().
			Err(err).
			Int64("artifact_id", artifactID).
			Int("attempt", attempt).
			Str("error_type", ihttp.ErrorTypeName(errType)).
			Msg("artifact download interrupted, retrying")
	}

	var data []byte
	err := ihttp.ExecuteWithRetry(ctx, retryCfg, func() error {
		resp, err := c.doRequest(ctx, p, nil)
		if err != nil {
			// retryablehttp already retried the request itself
			return ihttp.Permanent(err)
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(io.LimitReader(resp.Body, constants.MaxArtifactArchiveBytes+1))
		return err
	})
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("download artifact %d: %w", artifactID, err))
	}
	if len(data) > constants.MaxArtifactArchiveBytes {
		return nil, fmt.Errorf("artifact %d exceeds %d bytes", artifactID, constants.MaxArtifactArchiveBytes)
	}
	return data, nil
}

// ReadArtifactFile extracts one file from an artifact archive: the entry
// named exactly name, else one ending in /name, else the first regular file.
// Reads are capped at constants.MaxArtifactPayloadBytes.
func ReadArtifactFile(archive []byte, name string) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", nil, fmt.Errorf("open artifact archive: %w", err)
	}

	var exact, suffix, first *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		clean := path.Clean(f.Name)
		switch {
		case clean == name && exact == nil:
			exact = f
		case strings.HasSuffix(clean, "/"+name) && suffix == nil:
			suffix = f
		case first == nil:
			first = f
		}
	}

	chosen := exact
	if chosen == nil {
		chosen = suffix
	}
	if chosen == nil {
		chosen = first
	}
	if chosen == nil {
		return "", nil, fmt.Errorf("artifact archive is empty")
	}

	rc, err := chosen.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open %s in artifact archive: %w", chosen.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, constants.MaxArtifactPayloadBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read %s in artifact archive: %w", chosen.Name, err)
	}
	if len(data) > constants.MaxArtifactPayloadBytes {
		return "", nil, fmt.Errorf("%s exceeds %d bytes", chosen.Name, constants.MaxArtifactPayloadBytes)
	}
	return chosen.Name, data, nil
}
