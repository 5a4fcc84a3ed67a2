package repository

import "errors"

// Sentinel kinds for directory and booking errors.
var (
	ErrFull        = errors.New("opportunity is full")
	ErrInvalidSeed = errors.New("invalid seed fixture")
)
