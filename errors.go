package entropy

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid entropy configuration")
	ErrNotEnough     = errors.New("not enough entropy gathered")
	ErrNotPrepared   = errors.New("slice not prepared")
	ErrSpent         = errors.New("aggregator already spent")
)
