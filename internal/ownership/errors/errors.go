package errors

import (
	"fmt"
)

var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicateICO     = fmt.Errorf("duplicate ico")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrInvalidReference = fmt.Errorf("invalid reference")
	ErrForeignOwner     = fmt.Errorf("foreign owner")
)
