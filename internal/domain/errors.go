package domain

import "errors"

var (
	// Delivered in LoadResult.Err
	ErrPath = errors.New("image path could not be resolved")
	ErrLoad = errors.New("image could not be loaded")

	// Returned by the fetch and decode backends
	ErrResourceNotFound = errors.New("resource not found")
	ErrNetwork          = errors.New("network error")
	ErrDecode           = errors.New("image could not be decoded")

	ErrMalformedURL = errors.New("malformed image URL")
)
