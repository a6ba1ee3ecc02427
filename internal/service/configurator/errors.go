package configurator

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToLoad = errors.New("no saved scene")
	ErrCorruptScene  = errors.New("saved scene is corrupt")
	ErrStorage       = errors.New("scene storage unavailable")
)

type CorruptSceneError struct {
	Slot   string
	Reason string
}

func (e CorruptSceneError) Error() string {
	return fmt.Sprintf("saved scene %q is corrupt: %s", e.Slot, e.Reason)
}

func (e CorruptSceneError) Is(target error) bool {
	return target == ErrCorruptScene
}
