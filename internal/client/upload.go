package client

import (
	"fmt"
	"strconv"

	"github.com/livenative-dev/livenative/pkg/clientmetrics"
	"github.com/livenative-dev/livenative/pkg/dom"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// LiveFile is a file staged for upload through a live upload input.
type LiveFile struct {
	// Contents is the file body.
	Contents []byte
	// MimeType is sent to the server for acceptance checks.
	MimeType string
	// Name is the upload input's name.
	Name string
	// RelativePath is the client-side file name.
	RelativePath string
	// PhxUploadID is the `data-phx-upload-ref` of the target input.
	PhxUploadID string
}

const defaultChunkSize = 64_000

// UploadID resolves the data-phx-upload-ref of the upload input named
// target in the join document.
func UploadID(doc *dom.Document, target string) (string, error) {
	it := doc.Select(dom.And(dom.Attr("data-phx-upload-ref"), dom.AttrEquals("name", target)))
	node, ok := it.First()
	if !ok {
		return "", ErrNoInputRefInDocument
	}
	attr, ok := doc.GetAttributeByName(node, dom.NewAttributeName("data-phx-upload-ref"))
	if !ok {
		return "", ErrNoInputRefInDocument
	}
	return attr.ValueString(), nil
}

// uploadFile runs the upload protocol against the main channel: announce
// the entry with allow_upload, join the upload topic with the issued
// token, stream binary chunks, then report completion.
func (c *ConnectedClient) uploadFile(cfg *Config, file *LiveFile) error {
	clientmetrics.Uploads.Inc()
	main := c.Main
	timeout := cfg.WebsocketTimeout

	const entryRef = "0"
	entry := map[string]any{
		"name":          file.RelativePath,
		"relative_path": file.RelativePath,
		"size":          len(file.Contents),
		"type":          file.MimeType,
		"ref":           entryRef,
	}
	allowPayload := phx.JSONPayload(map[string]any{
		"ref":     file.PhxUploadID,
		"entries": []any{entry},
	})

	reply, err := main.Channel.Call(phx.UserEvent("allow_upload"), allowPayload, timeout)
	if err != nil {
		if callErr, ok := err.(*phx.CallError); ok {
			return uploadErrorFromReply(callErr.Payload)
		}
		return &UploadError{Kind: UploadOther, Msg: err.Error()}
	}
	if uploadErr := entryError(reply, entryRef); uploadErr != nil {
		return uploadErr
	}

	token := entryToken(reply, entryRef)
	if token == "" {
		return ErrNoUploadToken
	}

	chunkSize := chunkSizeFromReply(reply)

	joinPayload := phx.JSONPayload(map[string]any{"token": token})
	uploadChannel := c.Socket.Channel("lvu:"+entryRef, &joinPayload)
	if _, err := uploadChannel.Join(timeout); err != nil {
		return &UploadError{Kind: UploadOther, Msg: fmt.Sprintf("joining upload channel: %v", err)}
	}
	defer func() {
		_ = uploadChannel.Leave(timeout)
	}()

	for offset := 0; offset < len(file.Contents); offset += chunkSize {
		end := offset + chunkSize
		if end > len(file.Contents) {
			end = len(file.Contents)
		}
		chunk := phx.BinaryPayload(file.Contents[offset:end])
		if _, err := uploadChannel.Call(phx.UserEvent("chunk"), chunk, timeout); err != nil {
			return &UploadError{Kind: UploadOther, Msg: fmt.Sprintf("sending chunk: %v", err)}
		}
	}

	progressPayload := phx.JSONPayload(map[string]any{
		"event":     nil,
		"ref":       file.PhxUploadID,
		"entry_ref": entryRef,
		"progress":  100,
	})
	if _, err := main.Channel.Call(phx.UserEvent("progress"), progressPayload, timeout); err != nil {
		return &UploadError{Kind: UploadOther, Msg: fmt.Sprintf("reporting progress: %v", err)}
	}
	return nil
}

// entryToken digs the per-entry upload token out of the allow_upload
// reply.
func entryToken(reply phx.Payload, entryRef string) string {
	entries, ok := reply.Get("entries")
	if !ok {
		return ""
	}
	obj, ok := entries.(map[string]any)
	if !ok {
		return ""
	}
	token, _ := obj[entryRef].(string)
	return token
}

// entryError maps per-entry rejections in the allow_upload reply to
// typed upload errors.
func entryError(reply phx.Payload, entryRef string) error {
	errValue, ok := reply.Get("error")
	if !ok {
		return nil
	}
	// Errors arrive as [[entry_ref, reason], ...].
	list, ok := errValue.([]any)
	if !ok {
		return nil
	}
	for _, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		ref, _ := pair[0].(string)
		reason, _ := pair[1].(string)
		if ref != entryRef {
			continue
		}
		return uploadErrorForReason(reason)
	}
	return nil
}

func uploadErrorFromReply(payload phx.Payload) error {
	if reason, ok := payload.GetString("reason"); ok {
		return uploadErrorForReason(reason)
	}
	return &UploadError{Kind: UploadOther, Msg: payload.String()}
}

func uploadErrorForReason(reason string) error {
	switch reason {
	case "too_large":
		return &UploadError{Kind: UploadFileTooLarge}
	case "not_accepted":
		return &UploadError{Kind: UploadFileNotAccepted}
	default:
		return &UploadError{Kind: UploadOther, Msg: reason}
	}
}

func chunkSizeFromReply(reply phx.Payload) int {
	config, ok := reply.Get("config")
	if !ok {
		return defaultChunkSize
	}
	obj, ok := config.(map[string]any)
	if !ok {
		return defaultChunkSize
	}
	switch v := obj["chunk_size"].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultChunkSize
}
