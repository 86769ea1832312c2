package domain

import "errors"

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrFilterNotFound      = errors.New("notification filter not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidInstance     = errors.New("invalid instance descriptor")

	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenIssuerNotAllowed = errors.New("token issuer not allowed")
)
