package balance

import "errors"

// ErrInsufficientCredits indicates the user lacks credits for the request.
var ErrInsufficientCredits = errors.New("insufficient credits")
