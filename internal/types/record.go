package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names as they appear in persisted output.
const (
	FieldName               = "name"
	FieldPrice              = "price"
	FieldOriginalPrice      = "original_price"
	FieldRating             = "rating"
	FieldReviewCount        = "review_count"
	FieldDiscountPercentage = "discount_percentage"
	FieldCategory           = "category"
	FieldDescription        = "description"
	FieldShipFrom           = "ship_from"
	FieldSoldBy             = "sold_by"
	FieldImages             = "images"
)

// ListingFields is the ordered set of fields read from a listing element.
var ListingFields = []string{FieldName, FieldPrice, FieldOriginalPrice, FieldRating, FieldReviewCount}

// DetailFields is the ordered set of text fields read from a detail page.
var DetailFields = []string{FieldDescription, FieldShipFrom, FieldSoldBy}

// Fields maps a field name to its extracted value. A nil value marks a miss.
type Fields map[string]*string

// Get returns the value for key, or nil.
func (f Fields) Get(key string) *string {
	if f == nil {
		return nil
	}
	return f[key]
}

// Credentials is the identifier/secret pair used for sign-in.
type Credentials struct {
	Email    string
	Password string
}

// Enrichment holds the secondary fields read from a detail page.
type Enrichment struct {
	Description *string
	ShipFrom    *string
	SoldBy      *string
	Images      []string
}

// ProductRecord is one qualifying product.
type ProductRecord struct {
	Name               *string
	Price              *decimal.Decimal
	OriginalPrice      *decimal.Decimal
	Rating             *string
	ReviewCount        *string
	DiscountPercentage decimal.Decimal

	Description *string
	ShipFrom    *string
	SoldBy      *string
	Images      []string

	category string
	enriched bool
}

// NewProductRecord builds a record from listing fields. Prices are the
// normalised values, nil when the raw text could not be normalised.
func NewProductRecord(category string, fields Fields, price, original *decimal.Decimal, discount decimal.Decimal) *ProductRecord {
	return &ProductRecord{
		Name:               fields.Get(FieldName),
		Price:              price,
		OriginalPrice:      original,
		Rating:             fields.Get(FieldRating),
		ReviewCount:        fields.Get(FieldReviewCount),
		DiscountPercentage: discount,
		category:           category,
	}
}

// Category returns the listing banner text the record was found under.
func (r *ProductRecord) Category() string { return r.category }

// Enriched reports whether detail fields have been merged.
func (r *ProductRecord) Enriched() bool { return r.enriched }

// Enrich merges detail-page fields into the record. A record is enriched at
// most once.
func (r *ProductRecord) Enrich(e Enrichment) error {
	if r.enriched {
		return fmt.Errorf("record %q already enriched", r.displayName())
	}
	r.Description = e.Description
	r.ShipFrom = e.ShipFrom
	r.SoldBy = e.SoldBy
	r.Images = append([]string{}, e.Images...)
	r.enriched = true
	return nil
}

func (r *ProductRecord) displayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// Keys returns the record's field names in output order.
func (r *ProductRecord) Keys() []string {
	keys := make([]string, 0, 11)
	keys = append(keys, ListingFields...)
	keys = append(keys, FieldDiscountPercentage, FieldCategory)
	if r.enriched {
		keys = append(keys, DetailFields...)
		keys = append(keys, FieldImages)
	}
	return keys
}

// value returns the JSON-ready value for a key.
func (r *ProductRecord) value(key string) any {
	switch key {
	case FieldName:
		return r.Name
	case FieldPrice:
		return decimalValue(r.Price)
	case FieldOriginalPrice:
		return decimalValue(r.OriginalPrice)
	case FieldRating:
		return r.Rating
	case FieldReviewCount:
		return r.ReviewCount
	case FieldDiscountPercentage:
		return json.Number(r.DiscountPercentage.String())
	case FieldCategory:
		return r.category
	case FieldDescription:
		return r.Description
	case FieldShipFrom:
		return r.ShipFrom
	case FieldSoldBy:
		return r.SoldBy
	case FieldImages:
		if r.Images == nil {
			return []string{}
		}
		return r.Images
	}
	return nil
}

func decimalValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return json.Number(d.String())
}

// MarshalJSON writes the record as an object with keys in output order and
// decimals as JSON numbers.
func (r *ProductRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')

		var vb bytes.Buffer
		enc := json.NewEncoder(&vb)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r.value(key)); err != nil {
			return nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		buf.Write(bytes.TrimRight(vb.Bytes(), "\n"))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToFlatMap returns a flat map suitable for CSV export. Absent values are
// empty strings and images are JSON array text.
func (r *ProductRecord) ToFlatMap() map[string]string {
	flat := make(map[string]string, 11)
	for _, key := range r.Keys() {
		switch v := r.value(key).(type) {
		case *string:
			if v != nil {
				flat[key] = *v
			} else {
				flat[key] = ""
			}
		case string:
			flat[key] = v
		case json.Number:
			flat[key] = v.String()
		case []string:
			var b bytes.Buffer
			enc := json.NewEncoder(&b)
			enc.SetEscapeHTML(false)
			_ = enc.Encode(v)
			flat[key] = string(bytes.TrimRight(b.Bytes(), "\n"))
		default:
			flat[key] = ""
		}
	}
	return flat
}
