package models

import "time"

// LifecycleKind is the app lifecycle record written for app.* events.
type LifecycleKind string

const (
	LifecycleInit   LifecycleKind = "init"
	LifecycleLogin  LifecycleKind = "login"
	LifecycleLogout LifecycleKind = "logout"
)

// LifecycleRecord is one app init/login/logout row, keyed by event id.
type LifecycleRecord struct {
	Kind         LifecycleKind `json:"kind" db:"-"`
	EventID      string        `json:"event_id" db:"event_id"`
	EnterpriseID string        `json:"enterprise_id" db:"enterprise_id"`
	UserID       int64         `json:"user_id" db:"user_id"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// APIEvent is the registry row of a billable event type for an enterprise.
// Hooks receive it as the handle for the derived event counter.
type APIEvent struct {
	ID           string    `json:"id" db:"id"`
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	EventName    string    `json:"event_name" db:"event_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CounterDimension is what a counter row counts.
type CounterDimension string

const (
	CounterProduct  CounterDimension = "product"
	CounterCategory CounterDimension = "category"
	CounterTag      CounterDimension = "tag"
	CounterAPIEvent CounterDimension = "api_event"
)

// Counter is one time-bucketed counter row.
type Counter struct {
	EnterpriseID string           `json:"enterprise_id" db:"enterprise_id"`
	Dimension    CounterDimension `json:"dimension" db:"dimension"`
	DimensionID  string           `json:"dimension_id" db:"dimension_id"`
	Bucket       time.Time        `json:"bucket" db:"bucket"`
	Count        int64            `json:"count" db:"count"`
}
