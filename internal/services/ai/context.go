package ai

import (
	"context"
	"strconv"
)

// Context key types for logging (to avoid collisions with string keys)
type contextKey string

const (
	profileIDContextKey contextKey = "profile_id"
	userIDContextKey    contextKey = "user_id"
	requestIDContextKey contextKey = "request_id"
)

// ProfileIDContextKey returns the context key for profile ID
func ProfileIDContextKey() contextKey {
	return profileIDContextKey
}

// RequestIDContextKey returns the context key for request ID
func RequestIDContextKey() contextKey {
	return requestIDContextKey
}

// UserIDContextKey returns the context key for user ID
func UserIDContextKey() contextKey {
	return userIDContextKey
}

// WithProfileID attaches the profile ID to the context for logging
func WithProfileID(ctx context.Context, profileID int64) context.Context {
	return context.WithValue(ctx, profileIDContextKey, profileID)
}

// WithUserID attaches the user ID to the context for logging and usage
// attribution
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// WithRequestID attaches the request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// ExtractRequestID extracts a request ID from context if available
func ExtractRequestID(ctx context.Context) string {
	if reqID := ctx.Value(requestIDContextKey); reqID != nil {
		if id, ok := reqID.(string); ok {
			return id
		}
	}
	return ""
}

// ExtractProfileID extracts a profile ID from context if available,
// rendered as a string for log fields.
func ExtractProfileID(ctx context.Context) string {
	return strconv.FormatInt(profileIDFromContext(ctx), 10)
}

func profileIDFromContext(ctx context.Context) int64 {
	if profileID := ctx.Value(profileIDContextKey); profileID != nil {
		if id, ok := profileID.(int64); ok {
			return id
		}
	}
	return 0
}

func userIDFromContext(ctx context.Context) int64 {
	if userID := ctx.Value(userIDContextKey); userID != nil {
		if id, ok := userID.(int64); ok {
			return id
		}
	}
	return 0
}
