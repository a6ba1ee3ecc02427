package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidProperties = errors.New("invalid properties")

type InvalidPropertiesError struct {
	Field  string
	Reason string
}

func (e InvalidPropertiesError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e InvalidPropertiesError) Is(target error) bool {
	return target == ErrInvalidProperties
}

var ErrUnsupportedType = errors.New("unsupported object type")

type UnsupportedTypeError struct {
	Type ObjectType
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported object type: %q", e.Type)
}

func (e UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}
