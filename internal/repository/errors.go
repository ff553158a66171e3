package repository

import "errors"

var ErrEmptyTransactionID = errors.New("transaction ID is empty")
