package square

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
)

// mapError sorts a Square failure into the dispatch taxonomy. Rejected
// requests and declined cards are permanent; throttling, timeouts, outages
// and network errors are transient. A reused idempotency key is a conflict.
func mapError(err error, op string) error {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrapf(pkgerrors.CodeTransientChannel, err, "square %s failed", op)
	}

	code := codeForStatus(apiErr.StatusCode)
	message := fmt.Sprintf("square %s failed", op)
	for _, detail := range apiErrors(apiErr) {
		if detail == nil {
			continue
		}
		if detail.Code == sq.ErrorCodeIdempotencyKeyReused {
			code = pkgerrors.CodeConflict
		}
		if detail.Category == sq.ErrorCategoryAuthenticationError {
			return pkgerrors.Wrap(pkgerrors.CodePermanentChannel, err, "square authentication failed")
		}
		if text := strings.TrimSpace(deref(detail.Detail)); text != "" {
			message = text
			break
		}
	}
	return pkgerrors.Wrap(code, err, message)
}

// apiErrors decodes the {"errors": [...]} body the SDK keeps as the cause.
func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	cause := apiErr.Unwrap()
	if cause == nil {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(cause.Error())), &body); err != nil {
		return nil
	}
	return body.Errors
}

func codeForStatus(status int) pkgerrors.Code {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return pkgerrors.CodeTransientChannel
	case status >= 400 && status < 500:
		return pkgerrors.CodePermanentChannel
	}
	return pkgerrors.CodeTransientChannel
}
