package pipeline

import "errors"

// ErrEmptyInput is wrapped by a DecodeError when Process receives no bytes.
var ErrEmptyInput = errors.New("empty input")

// DecodeError reports bytes that could not be decoded as an image. It is the only
// error Process returns.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
