// Package acquire implements the Repository Acquirer (C1): it resolves a
// Descriptor into a local working tree, cloning remote repositories with a
// host-appropriate credentialed URL and reusing a prior clone when one is
// already present, the way the teacher's cmd/indexer clone step did for a
// single hardcoded GitHub form (cmd/indexer/main.go's cloneToTemp),
// generalized here to every host in §4.1's table and to the engine's
// persistent <root>/repos/<repo_id>/ layout instead of a throwaway temp dir.
package acquire

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/anhhai680/deepwiki-sub000/internal/engineerr"
	"github.com/anhhai680/deepwiki-sub000/pkg/models"
	"github.com/rs/zerolog/log"
)

// Acquire resolves descriptor into a local directory under root, cloning it
// if necessary. Local descriptors are returned as-is. Remote descriptors
// reuse an existing non-empty clone directory without re-cloning (§4.1:
// "reuse if the destination directory already exists and is non-empty").
func Acquire(ctx context.Context, descriptor models.Descriptor, root string) (string, error) {
	if descriptor.HostKind == models.HostLocal {
		return descriptor.Locator, nil
	}

	dest := filepath.Join(root, "repos", descriptor.RepoID())

	if nonEmpty(dest) {
		log.Info().Str("repo_id", descriptor.RepoID()).Str("dest", dest).Msg("reusing existing clone")
		return dest, nil
	}

	url, err := credentialedURL(descriptor)
	if err != nil {
		return "", engineerr.Acquisition(err, "building clone URL for %s", descriptor.ShortName())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", engineerr.Acquisition(err, "creating repo root for %s", descriptor.RepoID())
	}

	args := []string{"clone", "--depth", "1"}
	if descriptor.Ref != "" {
		args = append(args, "--branch", descriptor.Ref, "--single-branch")
	}
	args = append(args, url, dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := engineerr.Scrub(string(out), descriptor.Credential)
		_ = os.RemoveAll(dest)
		return "", engineerr.Acquisition(fmt.Errorf("%s", msg), "cloning %s", descriptor.ShortName())
	}

	log.Info().Str("repo_id", descriptor.RepoID()).Str("dest", dest).Msg("cloned repository")
	return dest, nil
}

// credentialedURL formats descriptor.Locator with host-appropriate
// credentials embedded in the URL per §4.1's table. A descriptor without a
// credential is returned unmodified — most public repositories need none.
func credentialedURL(d models.Descriptor) (string, error) {
	if d.Credential == "" {
		return d.Locator, nil
	}
	if !strings.HasPrefix(d.Locator, "https://") {
		return "", fmt.Errorf("credentialed clone requires an https:// locator, got %q", d.Locator)
	}
	rest := strings.TrimPrefix(d.Locator, "https://")

	switch d.HostKind {
	case models.HostGithub:
		return "https://" + d.Credential + "@" + rest, nil
	case models.HostGitlab:
		return "https://oauth2:" + d.Credential + "@" + rest, nil
	case models.HostBitbucket:
		return "https://x-token-auth:" + d.Credential + "@" + rest, nil
	default:
		return "", fmt.Errorf("unsupported host kind for credentialed clone: %s", d.HostKind)
	}
}

func nonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) > 0
}
