package model

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type TestSeries struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	Subject         string          `json:"subject"`
	Grade           string          `json:"grade"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ValidityDays    int             `json:"validity_days"`
	IsPublished     bool            `json:"is_published"`
	CreatedByID     *string         `json:"created_by_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	TotalTests      int             `json:"total_tests"` // COUNT over series_tests at read time
	Tests           []Test          `json:"tests,omitempty"`
}

// DiscountPrice is price × (1 − discount/100), rounded to two places.
func (s *TestSeries) DiscountPrice() decimal.Decimal {
	factor := hundred.Sub(s.DiscountPercent).Div(hundred)
	return s.Price.Mul(factor).Round(2)
}

func (s *TestSeries) IsFree() bool {
	return s.DiscountPrice().Sign() <= 0
}

func (s *TestSeries) IsOwnedBy(userID string) bool {
	return s.CreatedByID != nil && *s.CreatedByID == userID
}

// SeriesView adds the computed price to the JSON representation.
type SeriesView struct {
	*TestSeries
	DiscountPrice decimal.Decimal `json:"discount_price"`
	IsFree        bool            `json:"is_free"`
}

func NewSeriesView(s *TestSeries) SeriesView {
	return SeriesView{TestSeries: s, DiscountPrice: s.DiscountPrice(), IsFree: s.IsFree()}
}

type SeriesProgress struct {
	SeriesID    string    `json:"series_id"`
	TestID      string    `json:"test_id"`
	AttemptID   string    `json:"attempt_id"`
	Percentage  int       `json:"percentage"`
	IsPassed    bool      `json:"is_passed"`
	CompletedAt time.Time `json:"completed_at"`
}
