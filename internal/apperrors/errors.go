package apperrors

import "fmt"

// ErrComputeMissing is returned when Fetch is called without a compute function.
type ErrComputeMissing struct {
	Name string
}

// Error implements the error interface.
func (e *ErrComputeMissing) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no compute function given to generate cache for %q", e.Name)
	}
	return "no compute function given to generate cache"
}

// Is allows for error checking with errors.Is().
func (e *ErrComputeMissing) Is(target error) bool {
	_, ok := target.(*ErrComputeMissing)
	return ok
}

// NewComputeMissingError creates a new ErrComputeMissing.
func NewComputeMissingError(name string) *ErrComputeMissing {
	return &ErrComputeMissing{Name: name}
}

// ErrInvalidTag is returned when a related object is neither a type, a bare
// string, nor a value with an identity accessor.
type ErrInvalidTag struct {
	Value interface{}
}

// Error implements the error interface.
func (e *ErrInvalidTag) Error() string {
	return fmt.Sprintf("invalid tag %v (%T): objects passed in must have an ID method, be a type or a string", e.Value, e.Value)
}

// Is allows for error checking with errors.Is().
func (e *ErrInvalidTag) Is(target error) bool {
	_, ok := target.(*ErrInvalidTag)
	return ok
}

// NewInvalidTagError creates a new ErrInvalidTag.
func NewInvalidTagError(value interface{}) *ErrInvalidTag {
	return &ErrInvalidTag{Value: value}
}

// ErrDeserialization is returned when a stored payload cannot be reconstituted.
type ErrDeserialization struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *ErrDeserialization) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("failed to deserialize cached value for key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("failed to deserialize cached value: %v", e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *ErrDeserialization) Unwrap() error {
	return e.Err
}

// Is allows for error checking with errors.Is().
func (e *ErrDeserialization) Is(target error) bool {
	_, ok := target.(*ErrDeserialization)
	return ok
}

// NewDeserializationError creates a new ErrDeserialization.
func NewDeserializationError(key string, err error) *ErrDeserialization {
	return &ErrDeserialization{Key: key, Err: err}
}

// ErrMalformedKey is returned when a string is not a valid canonical cache key.
type ErrMalformedKey struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ErrMalformedKey) Error() string {
	return fmt.Sprintf("malformed cache key %q: %s", e.Key, e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ErrMalformedKey) Is(target error) bool {
	_, ok := target.(*ErrMalformedKey)
	return ok
}
