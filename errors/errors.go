package errors

import "fmt"

var (
	ErrInvalidToken       = fmt.Errorf("invite token does not match any participant")
	ErrSessionCompleted   = fmt.Errorf("interview already completed")
	ErrScriptNotFound     = fmt.Errorf("interview script not found")
	ErrScriptInvalid      = fmt.Errorf("interview script failed validation")
	ErrParticipantExists  = fmt.Errorf("participant already exists")
	ErrOperatorExists     = fmt.Errorf("operator already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
