package gdrive

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoCredentials = errors.New("gdrive: service account credentials missing")
	ErrNoAccessToken = errors.New("gdrive: could not obtain access token")
	ErrFileNotFound  = errors.New("gdrive: file not found")
)

// APIError is the error payload returned by the Drive API.
type APIError struct {
	Err struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drive api error: %d %s - %s", e.Err.Code, e.Err.Status, e.Err.Message)
}

// handleAPIError is a helper that handles the common request error pattern.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	// got a response, but the api returned an error
	if resp.IsErrorState() {
		if err, ok := resp.ErrorResult().(*APIError); ok {
			return fmt.Errorf("%s %w", operation, err)
		}
		return fmt.Errorf("drive api error: %s %s", operation, resp.Status)
	}

	return nil
}
