// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "github.com/cockroachdb/errors"

// Base errors. The web layer maps each to an HTTP status code.
var (
	// ErrBadParameter is rendered with http status code 400.
	ErrBadParameter = errors.New("bad parameter")

	// ErrUnauthorized is rendered with http status code 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is rendered with http status code 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict is rendered with http status code 409.
	ErrConflict = errors.New("conflict")
)

var (
	ErrInvalidCredentials  = errors.Wrap(ErrUnauthorized, "invalid username or password")
	ErrSessionExpired      = errors.Wrap(ErrUnauthorized, "session expired")
	ErrNotPDF              = errors.Wrap(ErrBadParameter, "file is not a PDF")
	ErrNoFiles             = errors.Wrap(ErrBadParameter, "no files uploaded")
	ErrGeminiNotConfigured = errors.New("gemini API key not configured")
	ErrXMLLinkNotFound     = errors.New("XML download link not found")
	ErrEmptyExtraction     = errors.New("AI response contained no records")
)
