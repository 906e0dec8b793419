package revision

import (
	"github.com/go-git/go-git/v5"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// Current returns the HEAD commit hash of the git repository enclosing dir,
// searching parent directories. It returns types.UnknownRevision when dir is
// not inside a repository or HEAD cannot be resolved.
func Current(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return types.UnknownRevision
	}
	head, err := repo.Head()
	if err != nil {
		return types.UnknownRevision
	}
	return head.Hash().String()
}
