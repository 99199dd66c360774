package server

import "errors"

var (
	ErrInsufficient = errors.New("entropy provider would block")
	ErrBadResponse  = errors.New("bad server response")

	errFrameTooLarge = errors.New("frame too large")
)
