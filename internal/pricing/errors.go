package pricing

import "errors"

// ErrUnknownOption indicates a selection references an option the module
// does not declare.
var ErrUnknownOption = errors.New("unknown option")
