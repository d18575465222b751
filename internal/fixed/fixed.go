// Package fixed implements the six-decimal fixed-point numbers used for every price and quantity.
package fixed

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Places is the number of decimal digits carried by a Point.
const Places = 6

// Point is a signed fixed-point number with Places decimals stored as an int64.
type Point int64

const (
	// Zero is the additive identity.
	Zero Point = 0
	// Scale is the raw representation of 1.
	Scale Point = 1_000_000
	// MaxValue is the largest representable Point; spread trackers use it as the "unset" sentinel.
	MaxValue Point = math.MaxInt64
)

var scaleDec = decimal.NewFromInt(int64(Scale))

// FromInt converts a whole number into a Point.
func FromInt(n int64) Point { return Point(n) * Scale }

// FromDecimal rounds d to Places decimals.
func FromDecimal(d decimal.Decimal) Point {
	return Point(d.Shift(Places).Round(0).IntPart())
}

// Parse reads a decimal string such as "1.2345".
func Parse(s string) (Point, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse fixed point %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) Point {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal returns the exact decimal value of p.
func (p Point) Decimal() decimal.Decimal { return decimal.New(int64(p), -Places) }

// Float64 is for metrics and display only.
func (p Point) Float64() float64 {
	f, _ := p.Decimal().Float64()
	return f
}

func (p Point) String() string {
	if p == MaxValue {
		return "unset"
	}
	return p.Decimal().String()
}

// Abs returns |p|.
func (p Point) Abs() Point {
	if p < 0 {
		return -p
	}
	return p
}

// Sign returns -1, 0 or +1.
func (p Point) Sign() int {
	switch {
	case p > 0:
		return 1
	case p < 0:
		return -1
	}
	return 0
}

// Mul multiplies two Points, truncating toward zero. The intermediate product is computed
// in arbitrary precision so large prices cannot overflow.
func Mul(a, b Point) Point {
	prod := decimal.NewFromInt(int64(a)).Mul(decimal.NewFromInt(int64(b)))
	q, _ := prod.QuoRem(scaleDec, 0)
	return Point(q.IntPart())
}

// Div divides a by b, truncating toward zero. Division by zero yields Zero.
func Div(a, b Point) Point {
	if b == 0 {
		return Zero
	}
	num := decimal.NewFromInt(int64(a)).Mul(scaleDec)
	q, _ := num.QuoRem(decimal.NewFromInt(int64(b)), 0)
	return Point(q.IntPart())
}

// Min returns the lesser of a and b.
func Min(a, b Point) Point {
	if a < b {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max(a, b Point) Point {
	if a > b {
		return a
	}
	return b
}

// UnmarshalYAML accepts both quoted and bare decimal scalars.
func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	v, err := Parse(node.Value)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalYAML writes the decimal string form.
func (p Point) MarshalYAML() (interface{}, error) {
	return p.Decimal().String(), nil
}

// MarshalJSON writes a quoted decimal so no precision is lost in float conversion.
func (p Point) MarshalJSON() ([]byte, error) {
	return p.Decimal().MarshalJSON()
}

// UnmarshalJSON accepts quoted or bare decimals.
func (p *Point) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = FromDecimal(d)
	return nil
}
