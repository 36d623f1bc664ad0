// Package envelope decodes raw event payloads into normalized event records.
// Only the fields an event kind needs are extracted.
package envelope

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Event is the normalized event record.
type Event struct {
	ID             string
	EnterpriseID   string
	EnterpriseName string
	Name           string
	Kind           Kind
	UserID         int64
	Phone          models.Phone
	ReceivedAt     time.Time

	// page.view and productpage.view
	RouteURL   string
	Categories []string
	Tags       []string

	// productpage.view
	ProductID   string
	ProductName string
	Price       models.Price
	HasPrice    bool

	// update.push_token
	PushType  int
	PushKey   string
	PushToken string
}

type wirePhone struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	DeviceID     string   `json:"deviceId"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	OS           string   `json:"os"`
}

// fields holds the top-level keys undecoded, so each kind only decodes the
// keys it reads and an odd value under an unused key is never an error.
type fields map[string]json.RawMessage

func (f fields) has(key string) bool {
	raw := bytes.TrimSpace(f[key])
	return len(raw) > 0 && string(raw) != "null"
}

// str reads a string, accepting a bare number as its literal text.
func (f fields) str(key string) (string, error) {
	if !f.has(key) {
		return "", nil
	}
	raw := bytes.TrimSpace(f[key])
	switch {
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return string(raw), nil
	default:
		return "", fmt.Errorf("%s must be a string", key)
	}
}

// strs reads a list of labels. A single string is a one-label list.
func (f fields) strs(key string) ([]string, error) {
	if !f.has(key) {
		return nil, nil
	}
	raw := bytes.TrimSpace(f[key])
	if raw[0] != '[' {
		s, err := f.str(key)
		if err != nil {
			return nil, fmt.Errorf("%s must be a list of strings", key)
		}
		return []string{s}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := fields{key: item}.str(key)
		if err != nil {
			return nil, fmt.Errorf("%s must be a list of strings", key)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Parse decodes payload into an Event. Errors match apperrors.ErrMalformedEnvelope.
// A well-formed envelope with an unrecognised event_name parses with Kind == KindUnknown
// and none of its other keys are inspected.
func Parse(payload []byte) (*Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, apperrors.Malformed("payload is not a JSON object")
	}

	var f fields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, apperrors.Malformed("invalid JSON: %v", err)
	}

	var enterprise fields
	if f.has("enterprise") {
		if err := json.Unmarshal(f["enterprise"], &enterprise); err != nil {
			return nil, apperrors.Malformed("invalid enterprise: %v", err)
		}
	}
	enterpriseID, err := enterprise.str("id")
	if err != nil {
		return nil, apperrors.Malformed("invalid enterprise.id: %v", err)
	}
	if strings.TrimSpace(enterpriseID) == "" {
		return nil, apperrors.Malformed("missing enterprise.id")
	}
	eventName, err := f.str("event_name")
	if err != nil {
		return nil, apperrors.Malformed("invalid event_name: %v", err)
	}
	if strings.TrimSpace(eventName) == "" {
		return nil, apperrors.Malformed("missing event_name")
	}
	id, err := f.str("uuid")
	if err != nil {
		return nil, apperrors.Malformed("invalid uuid: %v", err)
	}

	ev := &Event{
		ID:           id,
		EnterpriseID: enterpriseID,
		Name:         eventName,
		Kind:         KindOf(eventName),
		UserID:       models.AnonymousUserID,
		ReceivedAt:   time.Now().UTC(),
	}
	if ev.ID == "" {
		ev.ID = DeriveID(trimmed)
	}
	if ev.Kind == KindUnknown {
		return ev, nil
	}

	// customId is informational; a value of the wrong type is dropped, not rejected
	ev.EnterpriseName, _ = enterprise.str("customId")

	if ev.UserID, err = parseInt(f["userId"], models.AnonymousUserID); err != nil {
		return nil, apperrors.Malformed("invalid userId: %v", err)
	}
	if ev.Phone, err = parsePhone(f["phoneDetails"]); err != nil {
		return nil, apperrors.Malformed("invalid phoneDetails: %v", err)
	}

	switch ev.Kind {
	case KindPageView:
		if err := parsePage(f, ev); err != nil {
			return nil, err
		}
		if strings.TrimSpace(ev.RouteURL) == "" {
			return nil, apperrors.Malformed("missing routeUrl")
		}
	case KindProductPageView:
		if err := parsePage(f, ev); err != nil {
			return nil, err
		}
		if ev.ProductID, err = f.str("productId"); err != nil {
			return nil, apperrors.Malformed("invalid productId: %v", err)
		}
		if strings.TrimSpace(ev.ProductID) == "" {
			return nil, apperrors.Malformed("missing productId")
		}
		if ev.ProductName, err = f.str("productName"); err != nil {
			return nil, apperrors.Malformed("invalid productName: %v", err)
		}
		if ev.Price, ev.HasPrice, err = parsePrice(f["price"]); err != nil {
			return nil, apperrors.Malformed("invalid price: %v", err)
		}
	case KindUpdatePushToken:
		raw := f["notificationType"]
		if !f.has("notificationType") {
			raw = f["pushType"]
		}
		pushType, err := parseInt(raw, 0)
		if err != nil {
			return nil, apperrors.Malformed("invalid notificationType: %v", err)
		}
		if pushType < math.MinInt32 || pushType > math.MaxInt32 {
			return nil, apperrors.Malformed("invalid notificationType: %d out of range", pushType)
		}
		ev.PushType = int(pushType)
		if ev.PushKey, err = f.str("pushKey"); err != nil {
			return nil, apperrors.Malformed("invalid pushKey: %v", err)
		}
		if ev.PushToken, err = f.str("pushToken"); err != nil {
			return nil, apperrors.Malformed("invalid pushToken: %v", err)
		}
	}

	return ev, nil
}

func parsePage(f fields, ev *Event) error {
	var err error
	if ev.RouteURL, err = f.str("routeUrl"); err != nil {
		return apperrors.Malformed("invalid routeUrl: %v", err)
	}
	if ev.Categories, err = f.strs("categories"); err != nil {
		return apperrors.Malformed("invalid categories: %v", err)
	}
	if ev.Tags, err = f.strs("tags"); err != nil {
		return apperrors.Malformed("invalid tags: %v", err)
	}
	return nil
}

// DeriveID returns a stable id for envelopes that arrive without a uuid,
// so that a redelivered payload maps onto the same records.
func DeriveID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

func parsePhone(raw json.RawMessage) (models.Phone, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return models.Phone{}, nil
	}
	var p wirePhone
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Phone{}, err
	}
	phone := models.Phone{
		DeviceID:     p.DeviceID,
		Manufacturer: p.Manufacturer,
		Model:        p.Model,
		OS:           p.OS,
	}
	if p.Latitude != nil {
		phone.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		phone.Longitude = *p.Longitude
	}
	return phone, nil
}

// parseInt accepts a JSON number or a numeric string. Absent or null yields def.
func parseInt(raw json.RawMessage, def int64) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return def, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	// float64(math.MaxInt64) rounds up to 2^63
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s is out of range", s)
	}
	return int64(f), nil
}

// parsePrice accepts "19.99" or 19.99. ok is false when the price is absent.
func parsePrice(raw json.RawMessage) (price models.Price, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
		if strings.TrimSpace(s) == "" {
			return 0, false, nil
		}
	}
	price, err = models.ParsePrice(s)
	return price, err == nil, err
}
