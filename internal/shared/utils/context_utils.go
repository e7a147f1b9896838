package utils

import (
	"context"
	"errors"

	"content-sync/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrCollectionNotFound  = errors.New("collection not found in context")
	ErrCollectionNotString = errors.New("collection in context is not a string")
	ErrRequestIDNotFound   = errors.New("requestID not found in context")
	ErrRequestIDNotString  = errors.New("requestID in context is not a string")
	ErrSubjectNotFound     = errors.New("subject not found in context")
	ErrSubjectNotString    = errors.New("subject in context is not a string")
)

func stringValue(ctx context.Context, key interface{}, missing, notString error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", notString
	}
	return s, nil
}

// GetCollectionFromContext retrieves the collection name from the context.
func GetCollectionFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.CollectionKey, ErrCollectionNotFound, ErrCollectionNotString)
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound, ErrRequestIDNotString)
}

// GetSubjectFromContext retrieves the admin token subject from the context.
func GetSubjectFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.SubjectKey, ErrSubjectNotFound, ErrSubjectNotString)
}

// WithCollection adds the collection name to context
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, contextkeys.CollectionKey, collection)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithStoreID adds the ID of the issuing collection store to context
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return context.WithValue(ctx, contextkeys.StoreIDKey, storeID)
}

// WithSubject adds the admin token subject to context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextkeys.SubjectKey, subject)
}

// WithComponent adds component name to context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}

// GetCollectionOrDefault retrieves the collection name from context or returns a default value
func GetCollectionOrDefault(ctx context.Context, def string) string {
	if v, err := GetCollectionFromContext(ctx); err == nil {
		return v
	}
	return def
}

// GetSubjectOrDefault retrieves the subject from context or returns a default value
func GetSubjectOrDefault(ctx context.Context, def string) string {
	if v, err := GetSubjectFromContext(ctx); err == nil {
		return v
	}
	return def
}
