package fixed

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	p, err := Parse("1.2345")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if p != 1_234_500 {
		t.Fatalf("expected raw 1234500, got %d", p)
	}
	if p.String() != "1.2345" {
		t.Fatalf("unexpected string form %s", p.String())
	}

	if _, err := Parse("abc"); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

func TestMulDivCrossRates(t *testing.T) {
	ab := MustParse("1.2")
	bc := MustParse("1.1")
	ac := Mul(ab, bc)
	if ac != MustParse("1.32") {
		t.Fatalf("expected 1.32, got %s", ac)
	}
	if got := Div(ac, bc); got != ab {
		t.Fatalf("expected 1.2, got %s", got)
	}
	if got := Div(ac, Zero); got != Zero {
		t.Fatalf("expected zero on division by zero, got %s", got)
	}
}

func TestMulLargePricesDoesNotOverflow(t *testing.T) {
	px := MustParse("100000")
	got := Mul(px, MustParse("2"))
	if got != MustParse("200000") {
		t.Fatalf("expected 200000, got %s", got)
	}
}

func TestMulTruncatesTowardZero(t *testing.T) {
	got := Mul(MustParse("-0.000001"), MustParse("0.5"))
	if got != Zero {
		t.Fatalf("expected truncation to zero, got %s", got)
	}
}

func TestSentinelString(t *testing.T) {
	if MaxValue.String() != "unset" {
		t.Fatalf("expected unset, got %s", MaxValue.String())
	}
}

func TestYAMLAndJSON(t *testing.T) {
	var doc struct {
		A Point `yaml:"a"`
		B Point `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 0.5\nb: \"10\"\n"), &doc); err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if doc.A != MustParse("0.5") || doc.B != FromInt(10) {
		t.Fatalf("unexpected yaml values %s %s", doc.A, doc.B)
	}

	raw, err := json.Marshal(MustParse("-2.5"))
	if err != nil {
		t.Fatalf("json encode: %v", err)
	}
	if string(raw) != `"-2.5"` {
		t.Fatalf("unexpected json %s", raw)
	}
	var back Point
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if back != MustParse("-2.5") {
		t.Fatalf("unexpected round trip value %s", back)
	}
}
