package api

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrProviderBusy wraps transient provider overload surfaced to the user.
// The SDK retries these internally; one reaching us means retries were
// exhausted, so the whole query aborts with a retry-later message.
var ErrProviderBusy = errors.New("the model provider is overloaded, please try again in a few minutes")

// IsTransient reports whether an error is a rate-limit or overload condition
// from the provider.
func IsTransient(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 500, 503, 529:
			return true
		}
	}
	return errors.Is(err, ErrProviderBusy)
}
