package download

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed taxonomy of terminal download failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindHTTPClient
	KindHTTPServer
	KindRangeUnsupported
	KindSizeLimit
	KindChecksumMismatch
	KindDisk
	KindResumeIncompatible
	KindAborted
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindHTTPClient:
		return "http-client"
	case KindHTTPServer:
		return "http-server"
	case KindRangeUnsupported:
		return "range-unsupported"
	case KindSizeLimit:
		return "size-limit"
	case KindChecksumMismatch:
		return "checksum-mismatch"
	case KindDisk:
		return "disk"
	case KindResumeIncompatible:
		return "resume-incompatible"
	case KindAborted:
		return "aborted"
	}
	return "unknown"
}

// DownloadError carries an ErrorKind alongside the underlying cause.
type DownloadError struct {
	Kind ErrorKind
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func wrapKind(kind ErrorKind, err error) error {
	return &DownloadError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindNone.
func KindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNone
}

// IsRetryable reports whether the failure is transient and worth another
// attempt with backoff.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindHTTPServer:
		return true
	}
	return false
}

// classifyStatus maps an unexpected HTTP status code to an ErrorKind.
// 429 and 5xx are retryable server-side conditions, other 4xx are not.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindHTTPServer
	case code >= 500:
		return KindHTTPServer
	case code >= 400:
		return KindHTTPClient
	}
	return KindNetwork
}

func statusError(code int) error {
	return wrapKind(classifyStatus(code), fmt.Errorf("unexpected status code: %d", code))
}

// errRangeIgnored signals that the server answered a ranged request with a
// full body (200) or rejected the range (416); the task downgrades to a
// single-stream transfer.
var errRangeIgnored = errors.New("server ignored range request")
