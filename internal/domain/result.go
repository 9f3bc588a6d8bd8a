package domain

import "image"

// LoadResult is delivered exactly once per accepted load request.
//
// Completed only signals that the load ran to completion. A failed load has
// Completed == true, Image == nil and Err set.
type LoadResult struct {
	Image     image.Image
	Completed bool
	Err       error
}
