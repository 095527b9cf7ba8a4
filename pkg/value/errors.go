package value

import "errors"

var (
	errOverflow   = errors.New("value: array size overflow")
	errOutOfRange = errors.New("value: negative grow count")
)
