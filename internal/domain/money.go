package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents). The API serializes money as
// strings with two decimal places, e.g. "12.00" or "-3.50".
type Money int64

var ErrInvalidMoney = errors.New("invalid money amount")

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		// Tolerate bare numbers for robustness against lax clients.
		s = string(data)
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney converts a decimal string with at most two fraction digits.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	neg := false
	if s[0] == '+' || s[0] == '-' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidMoney
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, ErrInvalidMoney
	}
	// The sign has been consumed above; anything but digits is invalid from
	// here on. ParseInt alone would accept a second sign inside either part.
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidMoney
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, ErrInvalidMoney
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidMoney
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return Money(v), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Percent is a percentage with two decimal places, stored in hundredths
// (e.g. 19.00% == 1900). Serialized like money: "19.00".
type Percent int64

func (p Percent) String() string { return Money(p).String() }

func (p Percent) MarshalJSON() ([]byte, error) { return Money(p).MarshalJSON() }

func (p *Percent) UnmarshalJSON(data []byte) error {
	var m Money
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	*p = Percent(m)
	return nil
}

// ApplyTo reduces an amount by this percentage, rounding half away from zero.
func (p Percent) ApplyTo(amount Money) Money {
	discount := (int64(amount)*int64(p) + 5000) / 10000
	return amount - Money(discount)
}
