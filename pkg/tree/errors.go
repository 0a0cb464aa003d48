package tree

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// ErrPathNotFound is returned (wrapped in *PathNotFoundError) when a path does
// not resolve to a node in the given tree.
var ErrPathNotFound = errors.New("no node found at the given path")

// PathNotFoundError reports which operation failed and on which path.
type PathNotFoundError struct {
	Op   string
	Path model.Path
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path.String(), ErrPathNotFound)
}

// Is lets errors.Is(err, ErrPathNotFound) match.
func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

func notFound(op string, path model.Path) error {
	return &PathNotFoundError{Op: op, Path: path}
}
