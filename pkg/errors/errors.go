package errors

import "errors"

var (
	ErrInvalidYear         = errors.New("invalid year")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidPage         = errors.New("invalid page")
	ErrInvalidPerPage      = errors.New("invalid perPage")
	ErrNilTransaction      = errors.New("transaction is nil")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateID         = errors.New("transaction id already exists")
	ErrSeedFetch           = errors.New("seed source fetch failed")
)
