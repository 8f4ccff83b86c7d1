package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ProductID is the backend's product identifier. The catalog may issue it as a
// JSON number or a JSON string; both decode to the same value.
type ProductID string

func (id ProductID) String() string {
	return string(id)
}

// MarshalJSON writes canonical integers ("42", not "007" or "+5") as JSON
// numbers and everything else as strings, so decoding gives back the same id.
func (id ProductID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ProductID) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode product id: %w", err)
	}

	s, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("product id %s: %w", string(b), err)
	}
	*id = ProductID(s)
	return nil
}

type Product struct {
	ID          ProductID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CategoryID  CategoryID      `json:"categoryId,omitempty"`
}

// CategoryID uses the same string-or-number encoding as ProductID.
type CategoryID = ProductID

type Category struct {
	ID   CategoryID `json:"id"`
	Name string     `json:"name"`
}

// SearchFilter mirrors the catalog search body. Nil fields are sent as null.
type SearchFilter struct {
	Name       string           `json:"name"`
	CategoryID *string          `json:"categoryId"`
	MinPrice   *decimal.Decimal `json:"minPrice"`
	MaxPrice   *decimal.Decimal `json:"maxPrice"`
}

// NewSearchFilter builds a filter from raw form values, treating empty strings
// as unset.
func NewSearchFilter(name, categoryID, minPrice, maxPrice string) (SearchFilter, error) {
	f := SearchFilter{Name: name}
	if categoryID != "" {
		f.CategoryID = &categoryID
	}

	lo, err := optionalDecimal(minPrice)
	if err != nil {
		return SearchFilter{}, fmt.Errorf("minPrice: %w", err)
	}
	hi, err := optionalDecimal(maxPrice)
	if err != nil {
		return SearchFilter{}, fmt.Errorf("maxPrice: %w", err)
	}
	f.MinPrice, f.MaxPrice = lo, hi

	return f, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("must not be negative")
	}
	return &d, nil
}
