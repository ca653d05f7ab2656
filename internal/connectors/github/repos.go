package github

import (
	"time"

	gh "github.com/google/go-github/v80/github"
)

// FilterRepos drops archived and disabled repositories, and with a
// non-zero since, repositories neither pushed nor updated since then.
func FilterRepos(repos []*gh.Repository, since time.Time) []*gh.Repository {
	filtered := make([]*gh.Repository, 0, len(repos))
	for _, r := range repos {
		if r.GetArchived() || r.GetDisabled() {
			continue
		}
		if !since.IsZero() && lastChanged(r).Before(since) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// lastChanged is the later of a repository's pushed_at and updated_at.
func lastChanged(r *gh.Repository) time.Time {
	pushed := r.GetPushedAt().Time
	updated := r.GetUpdatedAt().Time
	if pushed.After(updated) {
		return pushed
	}
	return updated
}
