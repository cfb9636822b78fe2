package users

import "errors"

var (
	NotFoundErr      = errors.New("user not found")
	AlreadyExistsErr = errors.New("user already exists")
)
