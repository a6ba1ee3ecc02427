package scene

import (
	"errors"
	"fmt"
)

var (
	ErrNoStage        = errors.New("a stage must be placed before adding a truss")
	ErrObjectNotFound = errors.New("object not found")
	ErrDuplicateID    = errors.New("duplicate object id")
)

type ObjectNotFoundError struct {
	ID string
}

func (e ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object not found: %s", e.ID)
}

func (e ObjectNotFoundError) Is(target error) bool {
	return target == ErrObjectNotFound
}
