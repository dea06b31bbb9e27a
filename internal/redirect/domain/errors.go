package domain

import "errors"

var (
	ErrLinkNotFound       = errors.New("link configuration not found")
	ErrInvalidDestination = errors.New("invalid destination url")
	ErrInvalidLinkID      = errors.New("invalid link id")
)
