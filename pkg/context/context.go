package context

import "context"

type ContextKey string

var (
	EventIDKey      = ContextKey("X-Event-Id")
	EventNameKey    = ContextKey("X-Event-Name")
	EnterpriseIDKey = ContextKey("X-Enterprise-Id")
)

func SetEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func GetEventID(ctx context.Context) string {
	value, ok := ctx.Value(EventIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetEventName(ctx context.Context, eventName string) context.Context {
	return context.WithValue(ctx, EventNameKey, eventName)
}

func GetEventName(ctx context.Context) string {
	value, ok := ctx.Value(EventNameKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetEnterpriseID(ctx context.Context, enterpriseID string) context.Context {
	return context.WithValue(ctx, EnterpriseIDKey, enterpriseID)
}

func GetEnterpriseID(ctx context.Context) string {
	value, ok := ctx.Value(EnterpriseIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LogFields returns the event identity stored on ctx, for log.WithFields.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if v := GetEventID(ctx); v != "" {
		fields["event_id"] = v
	}
	if v := GetEventName(ctx); v != "" {
		fields["event_name"] = v
	}
	if v := GetEnterpriseID(ctx); v != "" {
		fields["enterprise_id"] = v
	}
	return fields
}
