package models

import (
	"time"

	"github.com/lib/pq"
)

// AnonymousUserID is the user id assigned when an event carries none.
const AnonymousUserID int64 = -1

// Enterprise is the tenant boundary. Created on first sighting, never mutated.
type Enterprise struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User is identified by (enterprise_id, id).
type User struct {
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	ID           int64     `json:"id" db:"id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Phone is the device block carried by an envelope.
type Phone struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	DeviceID     string  `json:"deviceId"`
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	OS           string  `json:"os"`
}

// LocationHistory is one append-only location row, keyed by the event that produced it.
type LocationHistory struct {
	EventID      string    `json:"event_id" db:"event_id"`
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PhoneDetails is the single current device row of a user.
type PhoneDetails struct {
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	DeviceID     string    `json:"device_id" db:"device_id"`
	Manufacturer string    `json:"manufacturer" db:"manufacturer"`
	Model        string    `json:"model" db:"model"`
	OS           string    `json:"os" db:"os"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Product is identified by (enterprise_id, id).
// CategoryIDs and TagIDs are kept sorted so that stored sets compare by value.
type Product struct {
	EnterpriseID string         `json:"enterprise_id" db:"enterprise_id"`
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Price        Price          `json:"price" db:"price"`
	RouteURL     string         `json:"route_url" db:"route_url"`
	CategoryIDs  pq.StringArray `json:"category_ids" db:"category_ids"`
	TagIDs       pq.StringArray `json:"tag_ids" db:"tag_ids"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Page is identified by (enterprise_id, route_url).
type Page struct {
	EnterpriseID string         `json:"enterprise_id" db:"enterprise_id"`
	RouteURL     string         `json:"route_url" db:"route_url"`
	CategoryIDs  pq.StringArray `json:"category_ids" db:"category_ids"`
	TagIDs       pq.StringArray `json:"tag_ids" db:"tag_ids"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// PushKey is the current key of an enterprise for one push type.
type PushKey struct {
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	PushType     int       `json:"push_type" db:"push_type"`
	Key          string    `json:"key" db:"key"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PushToken is the current token of a user for one push type.
type PushToken struct {
	EnterpriseID string    `json:"enterprise_id" db:"enterprise_id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	PushType     int       `json:"push_type" db:"push_type"`
	Token        string    `json:"token" db:"token"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
