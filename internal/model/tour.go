package model

import (
	"strconv"
	"strings"
)

// TourPackage is a structured recommendation item sent by the agent.
type TourPackage struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Destination  string  `json:"destination,omitempty"`
	Price        int64   `json:"price"`
	Currency     string  `json:"currency,omitempty"`
	DurationDays int     `json:"duration_days,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	URL          string  `json:"url,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
}

// TourSelection is a (name, price) pair mined from free-form assistant text.
// It is a quick-pick hint only and is never persisted.
type TourSelection struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Index int    `json:"index"`
}

// FormatVND renders an amount with dot thousands separators, as prices are
// written on the storefront.
func FormatVND(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
