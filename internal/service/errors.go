package service

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateName      = errors.New("product with this name already exists")
	ErrAlreadyRegistered  = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)
