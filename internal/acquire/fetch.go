package acquire

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anhhai680/deepwiki-sub000/internal/engineerr"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// remoteCallTimeout bounds a single host-API call per §5's 30-second cap on
// remote provider/host calls.
const remoteCallTimeout = 30 * time.Second

// FetchFile retrieves one file's content for the Query Pipeline's pinned
// file (§6), without cloning or walking the whole repository. Local
// descriptors read straight off disk since their Locator already is a
// working tree. GitHub uses its Contents API against a live endpoint.
// GitLab and Bitbucket single-file fetch is not implemented, since neither
// host API was exercised by any retrieved reference implementation; callers
// treat that error as "no pinned content" rather than a fatal one.
func FetchFile(ctx context.Context, descriptor models.Descriptor, path string) (string, error) {
	switch descriptor.HostKind {
	case models.HostGithub:
		return fetchGithubFile(ctx, descriptor, path)
	case models.HostLocal:
		return fetchLocalFile(descriptor, path)
	default:
		return "", fmt.Errorf("pinned-file host fetch not supported for host kind %q", descriptor.HostKind)
	}
}

func fetchLocalFile(descriptor models.Descriptor, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(descriptor.Locator, path))
	if err != nil {
		return "", engineerr.Acquisition(err, "reading pinned file %s", path)
	}
	return string(data), nil
}

type githubContentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func fetchGithubFile(ctx context.Context, descriptor models.Descriptor, path string) (string, error) {
	owner, repo, err := ownerRepoFromLocator(descriptor.Locator)
	if err != nil {
		return "", engineerr.Acquisition(err, "resolving owner/repo for %s", descriptor.ShortName())
	}

	endpoint := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s", owner, repo, strings.TrimPrefix(path, "/"))
	if descriptor.Ref != "" {
		endpoint += "?ref=" + url.QueryEscape(descriptor.Ref)
	}

	reqCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if descriptor.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+descriptor.Credential)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		msg := engineerr.Scrub(err.Error(), descriptor.Credential)
		return "", engineerr.Acquisition(fmt.Errorf("%s", msg), "fetching %s from %s", path, descriptor.ShortName())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", engineerr.Acquisition(err, "reading file-fetch response for %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		msg := engineerr.Scrub(string(body), descriptor.Credential)
		return "", engineerr.Acquisition(fmt.Errorf("status %d: %s", resp.StatusCode, msg), "fetching %s from %s", path, descriptor.ShortName())
	}

	var parsed githubContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", engineerr.Acquisition(err, "parsing file-fetch response for %s", path)
	}
	if parsed.Encoding != "base64" {
		return parsed.Content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parsed.Content, "\n", ""))
	if err != nil {
		return "", engineerr.Acquisition(err, "decoding base64 content for %s", path)
	}
	return string(decoded), nil
}

func ownerRepoFromLocator(locator string) (string, string, error) {
	loc := strings.TrimSuffix(strings.TrimRight(locator, "/"), ".git")
	idx := strings.Index(loc, "://")
	if idx < 0 {
		return "", "", fmt.Errorf("locator %q is not a URL", locator)
	}
	loc = loc[idx+3:]
	parts := strings.Split(loc, "/")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("locator %q does not contain an owner/repo path", locator)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
