package apiclient

import "errors"

// Error taxonomy for the authentication flow. Every failure the backend or
// the transport can surface maps onto exactly one of these, so callers can
// branch with errors.Is instead of inspecting status codes.
var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	AlreadyExistsErr      = errors.New("account already exists")
	ValidationErr         = errors.New("invalid registration data")
	NetworkErr            = errors.New("backend unreachable")
	TimeoutErr            = errors.New("request timed out")
	SessionExpiredErr     = errors.New("session expired")
)
