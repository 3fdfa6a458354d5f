package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidRequest indicates invalid request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidKnowledgeBase indicates the knowledge base document is missing or malformed
	ErrInvalidKnowledgeBase = errors.New("invalid knowledge base")
)
