package services

import (
	"errors"

	"github.com/LovationAdmin/gst-api/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("price must be zero or positive")
	ErrInvalidRate  = errors.New("rate must be zero or positive")
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// CalculateGST splits a price into base, tax and total at the given total
// GST rate (percent). With inclusive=true the price already contains the tax.
//
// Rounding happens once per output; gst is derived from the rounded base and
// total so that base+gst == total to the paisa.
func CalculateGST(price, rate float64, inclusive bool) (*models.Calc, error) {
	if price < 0 {
		return nil, ErrInvalidPrice
	}
	if rate < 0 {
		return nil, ErrInvalidRate
	}

	p := decimal.NewFromFloat(price)
	r := decimal.NewFromFloat(rate)

	var base, total decimal.Decimal
	if inclusive {
		total = p
		base = p.Div(decimal.NewFromInt(1).Add(r.Div(hundred)))
	} else {
		base = p
		total = p.Add(p.Mul(r).Div(hundred))
	}

	base = base.Round(2)
	total = total.Round(2)
	gst := total.Sub(base)
	cgst := gst.Div(two).Round(2)
	sgst := gst.Sub(cgst)

	return &models.Calc{
		Rate:  r.InexactFloat64(),
		Base:  base.InexactFloat64(),
		GST:   gst.InexactFloat64(),
		CGST:  cgst.InexactFloat64(),
		SGST:  sgst.InexactFloat64(),
		Total: total.InexactFloat64(),
	}, nil
}

// SplitRate turns a stored schedule rate into (total, cgst, sgst) rates.
// Schedules published per CGST list half the total rate.
func SplitRate(stored float64, basis string) (total, cgst, sgst float64) {
	s := decimal.NewFromFloat(stored)
	if basis == "total" {
		half := s.Div(two)
		return stored, half.InexactFloat64(), half.InexactFloat64()
	}
	return s.Mul(two).InexactFloat64(), stored, stored
}
