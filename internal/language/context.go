package language

import "context"

type contextKey string

func (c contextKey) String() string {
	return "catalog/language/" + string(c)
}

const ctxKeyLanguage = contextKey("active")

// ToContext stores the negotiated language code on ctx.
func ToContext(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, code)
}

// FromContext returns the negotiated language code, or fallback when none was stored.
func FromContext(ctx context.Context, fallback string) string {
	if ctx == nil {
		return fallback
	}
	code, ok := ctx.Value(ctxKeyLanguage).(string)
	if !ok || code == "" {
		return fallback
	}
	return code
}
