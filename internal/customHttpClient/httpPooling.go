package customHttpClient

import (
	"net/http"

	"github.com/akolanti/docproc/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

var sharedClient = &http.Client{
	Transport: customTransport,
}

// Client returns the process-wide pooled HTTP client. The embedder and
// synthesizer clients reuse it so repeated upstream calls keep their
// connections warm.
func Client() *http.Client {
	return sharedClient
}

// Transport exposes the pooled transport for SDKs that take a RoundTripper
// instead of a full client, such as the blob store.
func Transport() http.RoundTripper {
	return customTransport
}
