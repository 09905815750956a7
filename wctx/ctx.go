// index for context values
package wctx

import (
	"context"
)

type key int

const (
	requestIDKey key = 1
	hookIDKey    key = 2
	sectionKey   key = 3
	versionKey   key = 4
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithHookID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, hookIDKey, id)
}

func HookID(ctx context.Context) string {
	id, _ := ctx.Value(hookIDKey).(string)
	return id
}

func WithSection(ctx context.Context, s string) context.Context {
	return context.WithValue(ctx, sectionKey, s)
}

func Section(ctx context.Context) string {
	s, _ := ctx.Value(sectionKey).(string)
	return s
}

func WithVersion(ctx context.Context, v string) context.Context {
	return context.WithValue(ctx, versionKey, v)
}

func Version(ctx context.Context) string {
	v, _ := ctx.Value(versionKey).(string)
	return v
}
