package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is a two-decimal fixed point amount held as integer cents.
// Products store price as NUMERIC(12,2), so comparing cents compares at
// storage precision.
type Price int64

// MaxPrice is the largest magnitude NUMERIC(12,2) holds.
const MaxPrice Price = 999_999_999_999

// PriceFromFloat rounds f half away from zero to cents. f must be within
// ±MaxPrice; ParsePrice checks that for wire input.
func PriceFromFloat(f float64) Price {
	return Price(math.Round(f * 100))
}

// IsValid reports whether p fits the products.price column.
func (p Price) IsValid() bool {
	return p >= -MaxPrice && p <= MaxPrice
}

// ParsePrice parses a decimal string such as "19.99". Plain decimals are
// rounded on their digits, so "2.675" becomes 268 cents; other float syntax
// goes through float64.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if p, ok := parseDecimal(s); ok {
		if !p.IsValid() {
			return 0, fmt.Errorf("price %q is out of range", s)
		}
		return p, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	if math.Abs(math.Round(f*100)) > float64(MaxPrice) {
		return 0, fmt.Errorf("price %q is out of range", s)
	}
	return PriceFromFloat(f), nil
}

func parseDecimal(s string) (Price, bool) {
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, false
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	if len(whole) > 15 {
		return 0, false
	}
	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, false
		}
		units = n
	}
	padded := frac + "000"
	cents := int64(padded[0]-'0')*10 + int64(padded[1]-'0')
	total := units*100 + cents
	if padded[2] >= '5' {
		total++
	}
	if neg {
		total = -total
	}
	return Price(total), true
}

// Cents returns the raw cent amount.
func (p Price) Cents() int64 {
	return int64(p)
}

func (p Price) String() string {
	sign := ""
	c := int64(p)
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// Value implements driver.Valuer.
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (p *Price) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = 0
		return nil
	case []byte:
		parsed, err := ParsePrice(string(v))
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case string:
		parsed, err := ParsePrice(v)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case float64:
		*p = PriceFromFloat(v)
		return nil
	case int64:
		*p = Price(v * 100)
		return nil
	default:
		return fmt.Errorf("Price.Scan: unsupported type %T", src)
	}
}
