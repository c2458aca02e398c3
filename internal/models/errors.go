package models

import "errors"

var (
	ErrInvalidSpot      = errors.New("invalid spot id")
	ErrForbidden        = errors.New("insufficient role for this operation")
	ErrNotFree          = errors.New("spot is not free")
	ErrNotOccupied      = errors.New("spot is not occupied")
	ErrNotBlocked       = errors.New("spot is not blocked")
	ErrTargetOccupied   = errors.New("move target is not free")
	ErrNoPendingFinish  = errors.New("no matching finish in progress")
	ErrNoMove           = errors.New("no move in progress")
	ErrRecordNotFound   = errors.New("history record not found")
	ErrStoreUnavailable = errors.New("remote store unavailable")
)
