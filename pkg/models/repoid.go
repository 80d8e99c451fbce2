package models

import (
	"path/filepath"
	"strings"
)

// repoID derives "owner_repo" from a remote locator or the basename of a
// local path. It tolerates trailing slashes, ".git" suffixes, and either
// "https://host/owner/repo" or "git@host:owner/repo" forms.
func repoID(d Descriptor) string {
	if d.HostKind == HostLocal {
		return filepath.Base(strings.TrimRight(d.Locator, string(filepath.Separator)))
	}

	loc := strings.TrimSuffix(strings.TrimRight(d.Locator, "/"), ".git")
	loc = strings.TrimSuffix(loc, "/")

	if idx := strings.Index(loc, "@"); idx >= 0 && strings.Contains(loc, ":") && !strings.Contains(loc, "://") {
		// scp-like form: git@host:owner/repo
		parts := strings.SplitN(loc[idx+1:], ":", 2)
		loc = parts[len(parts)-1]
	} else if idx := strings.Index(loc, "://"); idx >= 0 {
		loc = loc[idx+3:]
		if slash := strings.Index(loc, "/"); slash >= 0 {
			loc = loc[slash+1:]
		} else {
			loc = ""
		}
	}

	segs := strings.Split(loc, "/")
	var keep []string
	for _, s := range segs {
		if s != "" {
			keep = append(keep, s)
		}
	}
	if len(keep) >= 2 {
		return keep[len(keep)-2] + "_" + keep[len(keep)-1]
	}
	if len(keep) == 1 {
		return keep[0]
	}
	return "repo"
}

// shortName returns the last path segment of a locator, or the basename for
// local descriptors.
func shortName(d Descriptor) string {
	if d.HostKind == HostLocal {
		return filepath.Base(strings.TrimRight(d.Locator, string(filepath.Separator)))
	}
	loc := strings.TrimSuffix(strings.TrimRight(d.Locator, "/"), ".git")
	if i := strings.LastIndex(loc, "/"); i >= 0 {
		return loc[i+1:]
	}
	return loc
}
