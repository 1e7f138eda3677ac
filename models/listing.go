package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Text is a string field decoded leniently from scraper JSON. Scrapers emit
// numbers, booleans and nulls for fields we treat as free text.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return err
		}
		*t = Text(strconv.FormatBool(b))
	case '{', '[':
		// Nested values are not meaningful for listing fields.
		*t = ""
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = Text(n.String())
	}
	return nil
}

// String returns the raw text.
func (t Text) String() string { return string(t) }

// RawListing is one record as delivered by the scraping webhook, before any
// cleaning or validation.
type RawListing struct {
	PropertyName Text `json:"propertyName"`
	Price        Text `json:"price"`
	BHK          Text `json:"bhk"`
	Locality     Text `json:"locality"`
	Area         Text `json:"area"`
	Developer    Text `json:"developer"`
	Status       Text `json:"status"`
	RegDate      Text `json:"regDate"`
	Link         Text `json:"link"`
	PropertyType Text `json:"propertyType"`
	City         Text `json:"city"`
	Furnishing   Text `json:"furnishing"`
	Fomo         Text `json:"fomo"`
	Source       Text `json:"source"`
}

// Listing is the canonical stored record. Link is the natural key.
type Listing struct {
	ID           int64     `json:"id,omitempty"`
	PropertyName string    `json:"propertyName"`
	Price        string    `json:"price"`
	BHK          string    `json:"bhk"`
	Locality     string    `json:"locality"`
	Area         string    `json:"area"`
	Developer    string    `json:"developer"`
	Status       string    `json:"status"`
	RegDate      string    `json:"regDate"`
	Link         string    `json:"link"`
	PropertyType string    `json:"propertyType"`
	City         string    `json:"city"`
	Furnishing   string    `json:"furnishing"`
	Fomo         string    `json:"fomo"`
	Source       string    `json:"source"`
	IsNew        bool      `json:"isNew"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// Clone returns a shallow copy of l.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// Summary holds aggregate figures over the canonical store.
type Summary struct {
	TotalListings  int
	FreshListings  int
	Sources        []string
	BySource       map[string]int
	FreshBySource  map[string]int
	ListingsByCity map[string]int
	NewestListing  *Listing
}
