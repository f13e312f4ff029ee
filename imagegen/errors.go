package imagegen

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned when the profile has no API key.
	ErrMissingCredential = errors.New("imagegen: no API key configured")
	// ErrNoValidInput is returned when every candidate image was rejected.
	ErrNoValidInput = errors.New("imagegen: no valid images to send")
	// ErrMalformedResponse is returned for a success response carrying
	// neither an image nor text.
	ErrMalformedResponse = errors.New("imagegen: response has no image or text")
)

// RemoteRejectedError is a non-success HTTP status from the backend.
type RemoteRejectedError struct {
	Status  int
	Message string
}

func (e *RemoteRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API Error %d", e.Status)
	}
	return fmt.Sprintf("API Error %d: %s", e.Status, e.Message)
}

// ModelDeclinedError is a success response with text but no image.
type ModelDeclinedError struct {
	Text string
}

func (e *ModelDeclinedError) Error() string {
	return "model returned text only: " + e.Text
}
