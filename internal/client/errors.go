package client

import (
	"errors"
	"fmt"

	"github.com/livenative-dev/livenative/pkg/phx"
)

// Handshake failures while bootstrapping a session from the dead render.
var (
	ErrCSRFTokenMissing        = errors.New("csrf token missing from dead render")
	ErrPhoenixMainMissing      = errors.New("data-phx-main element missing from dead render")
	ErrPhoenixIDMissing        = errors.New("phoenix id missing from dead render")
	ErrPhoenixSessionMissing   = errors.New("data-phx-session missing from dead render")
	ErrPhoenixStaticMissing    = errors.New("data-phx-static missing from dead render")
	ErrNoHostInURL             = errors.New("no host in url")
	ErrNoDocumentInJoinPayload = errors.New("no rendered document in join payload")
	ErrNoInputRefInDocument    = errors.New("no data-phx-upload-ref input in document")
	ErrNoUploadToken           = errors.New("no upload token in allow_upload reply")
)

// Runtime failures.
var (
	ErrClientNotConnected = errors.New("client not connected")
	ErrDisconnected       = errors.New("client message queue closed")
	ErrJoinPanic          = errors.New("connection job failed abnormally")
)

// SchemeNotSupportedError reports a URL whose scheme has no websocket
// counterpart.
type SchemeNotSupportedError struct {
	Scheme string
}

func (e *SchemeNotSupportedError) Error() string {
	return fmt.Sprintf("scheme %q not supported", e.Scheme)
}

// ConnectionError is a non-2xx dead render response. When the failed
// connection left a live-reload channel behind, it is retained for
// diagnostics.
type ConnectionError struct {
	StatusCode int
	Body       string

	// LiveReload is the live-reload channel carried out of the failed
	// connection attempt, when one was established.
	LiveReload *LiveChannel
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dead render request failed with status %d", e.StatusCode)
}

// JoinRejectionError is a server-rejected channel join that the retry
// policy did not absorb.
type JoinRejectionError struct {
	Payload phx.Payload
}

func (e *JoinRejectionError) Error() string {
	return fmt.Sprintf("join rejected: %s", e.Payload)
}

// CallError wraps a failed channel call.
type CallError struct {
	Msg string
	Err error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call failed: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("call failed: %s", e.Msg)
}

func (e *CallError) Unwrap() error { return e.Err }

// CastError wraps a failed channel cast.
type CastError struct {
	Msg string
	Err error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast failed: %s: %v", e.Msg, e.Err)
}

func (e *CastError) Unwrap() error { return e.Err }

// UploadErrorKind classifies upload failures.
type UploadErrorKind uint8

const (
	// UploadFileTooLarge means the file exceeds the server's limit.
	UploadFileTooLarge UploadErrorKind = iota
	// UploadFileNotAccepted means the server rejected the file type.
	UploadFileNotAccepted
	// UploadOther is any other upload failure.
	UploadOther
)

// UploadError is a failed file upload.
type UploadError struct {
	Kind UploadErrorKind
	Msg  string
}

func (e *UploadError) Error() string {
	switch e.Kind {
	case UploadFileTooLarge:
		return "file exceeds maximum size"
	case UploadFileNotAccepted:
		return "file was not accepted"
	default:
		return fmt.Sprintf("upload failed: %s", e.Msg)
	}
}
