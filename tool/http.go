package tool

import (
	"crypto/tls"
	"net/http"
	"time"
)

var (
	DefaultTimeout = 30 * time.Second

	// ConnectionHttpClient is the process-wide client for short calls
	// (register, cancel, info). Peers use ephemeral self-signed
	// certificates, so verification stays off.
	ConnectionHttpClient *http.Client

	// TransferHttpClient has no timeout. Prepare-upload blocks until the
	// receiving user answers and uploads run as long as the file is large.
	TransferHttpClient *http.Client
)

func init() {
	ConnectionHttpClient = NewHTTPClient(DefaultTimeout)
	TransferHttpClient = NewHTTPClient(0)
}

// NewHTTPClient creates an HTTP client, skipping self-signed certificate
// verification in HTTPS mode. A zero timeout means no client timeout; the
// upload path needs that since large transfers outlive any fixed deadline.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
		},
	}
}

func GetHttpClient() *http.Client {
	return ConnectionHttpClient
}
