package admin

import (
	"errors"
)

var (
	ErrBusNotFound  = errors.New("bus not found")
	ErrUserNotFound = errors.New("user not found")
	ErrSeatNotFound = errors.New("seat not found")
)
