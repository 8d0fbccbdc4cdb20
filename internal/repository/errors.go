package repository

import "errors"

var (
	// ErrUnsupportedScheme indicates an image reference with an unknown location scheme
	ErrUnsupportedScheme = errors.New("unsupported image location scheme")

	// ErrImageUnreadable indicates the referenced image could not be loaded
	ErrImageUnreadable = errors.New("image unreadable")
)
