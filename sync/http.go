package sync

import (
	"net/http"
	"time"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to the
// collaborator APIs. Transport-level retry policy belongs to the embedding
// service, not to this package.
const HTTPRequestTimeout = 60 * time.Second

func newAPIClient() *http.Client {
	return &http.Client{Timeout: HTTPRequestTimeout}
}
