package publisher

import (
	"errors"
	"fmt"
)

// ValidationError reports an artifact that is missing or not a result set.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid artifact %s: %v", e.Path, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// RepositoryError reports a failure preparing or writing the dashboard working copy.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("dashboard repository %s failed: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// GitError reports a failed stage, commit or push.
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *GitError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if the error is or wraps a ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return err != nil && errors.As(err, &target)
}

// IsRepositoryError checks if the error is or wraps a RepositoryError
func IsRepositoryError(err error) bool {
	var target *RepositoryError
	return err != nil && errors.As(err, &target)
}

// IsGitError checks if the error is or wraps a GitError
func IsGitError(err error) bool {
	var target *GitError
	return err != nil && errors.As(err, &target)
}
