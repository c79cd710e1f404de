package usecases

import "errors"

// ErrInvalidInput marks errors caused by bad caller input.
var ErrInvalidInput = errors.New("invalid input")
