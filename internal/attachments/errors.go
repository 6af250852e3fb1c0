package attachments

import "errors"

var (
	// ErrUnsupportedType indicates the media type is outside the module allow-list.
	ErrUnsupportedType = errors.New("media type not allowed")
	// ErrTooLarge indicates the file exceeds the module size ceiling.
	ErrTooLarge = errors.New("file exceeds size limit")
	// ErrQuotaExceeded indicates the attachment count ceiling was reached.
	ErrQuotaExceeded = errors.New("attachment quota exceeded")
	// ErrTransferFailed indicates the byte transfer to storage failed.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrUnauthorized indicates the storage collaborator rejected the request.
	ErrUnauthorized = errors.New("upload not authorized")
)
