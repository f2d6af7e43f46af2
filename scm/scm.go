// Package scm reads branch and revision metadata from the work tree so the
// run context never depends on ambient CI environment variables.
package scm

import (
	"github.com/go-git/go-git/v5"
)

// SourceInfo identifies the source revision a run operates on.
type SourceInfo struct {
	Branch   string
	Revision string
}

// Describe resolves the branch and commit of the repository containing path.
// Work trees that are not git repositories get stable defaults so local and
// test runs still produce a fully populated run context.
func Describe(path string) SourceInfo {
	info := SourceInfo{Branch: "local", Revision: "unknown"}

	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return info
	}
	head, err := repo.Head()
	if err != nil {
		return info
	}

	info.Revision = head.Hash().String()
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	} else {
		info.Branch = "detached"
	}
	return info
}
