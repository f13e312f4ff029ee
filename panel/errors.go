package panel

import (
	"context"
	"errors"
	"net/http"

	"github.com/hazyhaar/snse/imageembed"
	"github.com/hazyhaar/snse/imagegen"
	"github.com/hazyhaar/snse/outfit"
	"github.com/hazyhaar/snse/store"
)

var (
	// ErrNotReady is returned by Generate unless composing with all three slots filled.
	ErrNotReady = errors.New("panel: outfit not ready")
	// ErrNoImage is returned by Save when the current product has no image.
	ErrNoImage = errors.New("panel: current product has no image")
	// ErrNotInWardrobe is returned when a title+image pair matches no saved item.
	ErrNotInWardrobe = errors.New("panel: item not in wardrobe")
	// ErrBadMessage is returned for inbound messages that are not a usable
	// product detection.
	ErrBadMessage = errors.New("panel: not a product-detected message with a title")
)

// Describe turns any failure into the single message shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var (
		rejected *imagegen.RemoteRejectedError
		declined *imagegen.ModelDeclinedError
		fetch    *imageembed.FetchFailedError
	)
	switch {
	case errors.Is(err, imagegen.ErrMissingCredential):
		return "Add your API key in the profile before generating."
	case errors.Is(err, imagegen.ErrNoValidInput):
		return "None of the outfit images could be used. Try saving the items again."
	case errors.As(err, &rejected):
		return "Failed to generate outfit: " + rejected.Error()
	case errors.As(err, &declined):
		return "The model did not return an image: " + declined.Text
	case errors.Is(err, imagegen.ErrMalformedResponse):
		return "The image service returned an unexpected response."
	case errors.As(err, &fetch):
		return "Could not load an image. Is it a valid URL?"
	case errors.Is(err, store.ErrUnavailable):
		return "Storage is unavailable; nothing was saved."
	case errors.Is(err, ErrNotReady):
		return "Select an item for every slot before generating."
	case errors.Is(err, ErrNoImage):
		return "This product has no image to save."
	case errors.Is(err, ErrNotInWardrobe):
		return "That item is not in your wardrobe."
	case errors.Is(err, ErrBadMessage):
		return "The message did not carry a product."
	case errors.Is(err, outfit.ErrNoProduct):
		return "No product detected yet."
	case errors.Is(err, outfit.ErrNotComposing):
		return "Create an outfit first."
	case errors.Is(err, outfit.ErrInertCategory):
		return "That slot already holds the current product."
	case errors.Is(err, outfit.ErrNoSlot):
		return "Accessories cannot be part of an outfit."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	}
	return "Something went wrong: " + err.Error()
}

// statusFor maps a failure to an HTTP status code.
func statusFor(err error) int {
	var (
		rejected *imagegen.RemoteRejectedError
		declined *imagegen.ModelDeclinedError
		fetch    *imageembed.FetchFailedError
	)
	switch {
	case errors.Is(err, ErrNotReady), errors.Is(err, outfit.ErrNoProduct),
		errors.Is(err, outfit.ErrNotComposing), errors.Is(err, outfit.ErrInertCategory),
		errors.Is(err, ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, ErrNotInWardrobe):
		return http.StatusNotFound
	case errors.Is(err, ErrBadMessage), errors.Is(err, outfit.ErrNoSlot),
		errors.Is(err, imagegen.ErrMissingCredential), errors.Is(err, imagegen.ErrNoValidInput):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rejected), errors.As(err, &declined),
		errors.Is(err, imagegen.ErrMalformedResponse), errors.As(err, &fetch):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
