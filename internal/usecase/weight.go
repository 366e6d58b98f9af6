package usecase

import (
	"regexp"
	"strings"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

// "350 g", "0,35 кг", "1.2kg", "500"
var weightPattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:[.,][0-9]+)?)\s*(kg|кг|g|гр|г)?\.?\s*$`)

var gramsPerKilo = decimal.NewFromInt(1000)

// 特性のweight（または"вес"）をグラムで返す。単位なしはグラム扱い
func ProductWeightGrams(p model.Product) (int64, bool) {
	for _, key := range []string{"weight", "вес"} {
		if v, ok := p.Characteristic(key); ok {
			if g, ok := ParseWeightGrams(v); ok {
				return g, true
			}
		}
	}
	return 0, false
}

func ParseWeightGrams(s string) (int64, bool) {
	m := weightPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "kg", "кг":
		n = n.Mul(gramsPerKilo)
	}
	g := n.Round(0).IntPart()
	if g <= 0 {
		return 0, false
	}
	return g, true
}
