package domain

import (
	"fmt"
	"strconv"
)

type TargetKind string

const (
	TargetVariant     TargetKind = "variant"
	TargetBaseProduct TargetKind = "product"
)

// LineTarget identifies what a cart or order line sells: a product variant,
// or a base product that has no variant-level stock tracking.
type LineTarget struct {
	Kind TargetKind `json:"kind" db:"target_kind"`
	ID   int64      `json:"id" db:"target_id"`
}

func Variant(id int64) LineTarget {
	return LineTarget{Kind: TargetVariant, ID: id}
}

func BaseProduct(id int64) LineTarget {
	return LineTarget{Kind: TargetBaseProduct, ID: id}
}

func (t LineTarget) IsVariant() bool {
	return t.Kind == TargetVariant
}

func (t LineTarget) Validate() error {
	switch t.Kind {
	case TargetVariant, TargetBaseProduct:
	default:
		return NewValidationError("target", fmt.Sprintf("unknown target kind %q", t.Kind))
	}
	if t.ID <= 0 {
		return NewValidationError("target", "id must be positive")
	}
	return nil
}

// Less orders targets by kind then id. Reservations are always taken in this
// order so overlapping checkouts cannot wait on each other in a cycle.
func (t LineTarget) Less(o LineTarget) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	return t.ID < o.ID
}

func (t LineTarget) String() string {
	return string(t.Kind) + ":" + strconv.FormatInt(t.ID, 10)
}

// ParseTarget parses the kind/id pair used in URLs.
func ParseTarget(kind, id string) (LineTarget, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return LineTarget{}, NewValidationError("id", "must be an integer")
	}
	t := LineTarget{Kind: TargetKind(kind), ID: n}
	if err := t.Validate(); err != nil {
		return LineTarget{}, err
	}
	return t, nil
}

// TargetRef is the request-side form of a LineTarget: exactly one of the
// two ids must be set.
type TargetRef struct {
	VariantID *int64 `json:"variant_id" form:"variant_id"`
	ProductID *int64 `json:"product_id" form:"product_id"`
}

func (r TargetRef) Target() (LineTarget, error) {
	switch {
	case r.VariantID != nil && r.ProductID != nil:
		return LineTarget{}, NewValidationError("target", "set either variant_id or product_id, not both")
	case r.VariantID != nil:
		t := Variant(*r.VariantID)
		return t, t.Validate()
	case r.ProductID != nil:
		t := BaseProduct(*r.ProductID)
		return t, t.Validate()
	default:
		return LineTarget{}, NewValidationError("target", "variant_id or product_id is required")
	}
}
