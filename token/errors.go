package token

import "errors"

var (
	InvalidTokenErr = errors.New("invalid token")
	TokenExpiredErr = errors.New("token expired")
	TokenRevokedErr = errors.New("token revoked")
)
