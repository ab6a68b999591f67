package core

import "errors"

var (
	ErrPageNotFound       = errors.New("page not found")
	ErrRenderFailure      = errors.New("cannot render page")
	ErrDescriptionMissing = errors.New("description file is missing")
	ErrMalformedRequest   = errors.New("malformed request line")
	ErrAssetIO            = errors.New("cannot read static asset")
	ErrAuditFailure       = errors.New("cannot record connection")
)
