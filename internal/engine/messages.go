package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kurobon/modelrepo/internal/grafico"
	"github.com/kurobon/modelrepo/internal/repo"
)

// UserMessage turns an error from the engine into one sentence a user can
// act on. Repositories are named by directory, never by full path.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		dirty    *DirtyWorkingTreeError
		unsaved  *UnsavedChangesConflictError
		unknown  *UnknownBranchError
		notRepo  *repo.NotARepositoryError
		gitErr   *repo.GitAccessError
		serErr   *grafico.SerializationError
		parseErr *grafico.ParseError
		refErr   *grafico.ReferenceError
	)
	switch {
	case errors.Is(err, ErrNothingToCommit):
		return "There are no changes to commit."
	case errors.Is(err, ErrDetachedHead):
		return "Check out a branch before pushing."
	case errors.As(err, &dirty):
		if len(dirty.Paths) == 0 {
			return "Save and commit your model changes before switching branches."
		}
		return "Commit your changes before switching branches."
	case errors.As(err, &unsaved):
		return "The model has unsaved changes. Export them or discard them before reloading the model from the repository."
	case errors.As(err, &unknown):
		return fmt.Sprintf("The branch %q no longer exists. Refresh the branch list and try again.", unknown.Name)
	case errors.Is(err, os.ErrExist):
		return "A repository with that name already exists."
	case errors.As(err, &notRepo):
		return fmt.Sprintf("The folder %q is not a model repository.", filepath.Base(notRepo.Path))
	case errors.As(err, &serErr):
		return fmt.Sprintf("The model cannot be exported: %s.", serErr.Reason)
	case errors.As(err, &parseErr):
		return fmt.Sprintf("The model file %s cannot be read: %s.", parseErr.Path, parseErr.Reason)
	case errors.As(err, &refErr):
		return fmt.Sprintf("The model file %s refers to %s, which is missing from the repository.", refErr.Path, refErr.Ref)
	case errors.Is(err, context.Canceled):
		return "The operation was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The operation timed out. Check the connection to the remote and try again."
	case errors.As(err, &gitErr):
		return fmt.Sprintf("Could not %s in repository %q: %v.", gitErr.Op, filepath.Base(gitErr.Repo), gitErr.Err)
	default:
		return err.Error()
	}
}
