package livenative

import (
	"github.com/livenative-dev/livenative/internal/client"
)

// Handshake errors surfaced while bootstrapping a session.
var (
	ErrCSRFTokenMissing        = client.ErrCSRFTokenMissing
	ErrPhoenixMainMissing      = client.ErrPhoenixMainMissing
	ErrPhoenixIDMissing        = client.ErrPhoenixIDMissing
	ErrPhoenixSessionMissing   = client.ErrPhoenixSessionMissing
	ErrPhoenixStaticMissing    = client.ErrPhoenixStaticMissing
	ErrNoHostInURL             = client.ErrNoHostInURL
	ErrNoDocumentInJoinPayload = client.ErrNoDocumentInJoinPayload
	ErrNoInputRefInDocument    = client.ErrNoInputRefInDocument
	ErrNoUploadToken           = client.ErrNoUploadToken
)

// ErrClientNotConnected is returned by every operation that requires a
// connected session when the client is in any other state.
var ErrClientNotConnected = client.ErrClientNotConnected

// ConnectionError is a non-2xx dead render response.
type ConnectionError = client.ConnectionError

// JoinRejectionError is a server-rejected join the retry policy did not
// absorb.
type JoinRejectionError = client.JoinRejectionError

// SchemeNotSupportedError reports a URL scheme without a websocket
// counterpart.
type SchemeNotSupportedError = client.SchemeNotSupportedError

// CallError wraps a failed channel call.
type CallError = client.CallError

// CastError wraps a failed channel cast.
type CastError = client.CastError

// UploadError is a failed file upload.
type UploadError = client.UploadError

// Upload error kinds.
const (
	UploadFileTooLarge    = client.UploadFileTooLarge
	UploadFileNotAccepted = client.UploadFileNotAccepted
	UploadOther           = client.UploadOther
)
