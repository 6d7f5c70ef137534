package contract

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrEngineInvoke  = errors.New("dialogue engine invoke failed")
	ErrUnknownAction = errors.New("action is not registered")
	ErrFeedExhausted = errors.New("headline feed exhausted")
)
