package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrMappingNotFound    = errors.New("id mapping not found")
	ErrStorageUnavailable = errors.New("mapping storage unavailable")
	ErrMissingParent      = errors.New("missing parent reference")
	ErrParentNotSynced    = errors.New("parent entity not synced")
	ErrInvalidRange       = errors.New("invalid date range")
	ErrInvalidPayload     = errors.New("invalid payload")
	ErrUnknownEntity      = errors.New("unknown entity type")
	ErrUnknownEvent       = errors.New("unknown event kind")
)
