package session

import "github.com/greenwood-edu/lostfound-auth/apiclient"

// The session error taxonomy is produced at the API boundary; the aliases
// let consumers branch without importing the client package.
var (
	InvalidCredentialsErr = apiclient.InvalidCredentialsErr
	AlreadyExistsErr      = apiclient.AlreadyExistsErr
	ValidationErr         = apiclient.ValidationErr
	NetworkErr            = apiclient.NetworkErr
	TimeoutErr            = apiclient.TimeoutErr
	SessionExpiredErr     = apiclient.SessionExpiredErr
)
