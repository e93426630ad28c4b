package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Семейства единиц: пересчет возможен только внутри одного
const (
	unitFamilyMass   = "masa"
	unitFamilyVolume = "volumen"
	unitFamilyCount  = "unidad"
)

type unitInfo struct {
	canonical string
	family    string
	// factor - сколько базовых единиц семейства (kg, l, ud) в одной такой единице
	factor decimal.Decimal
}

var unitAliases = map[string]unitInfo{}

func init() {
	register := func(info unitInfo, aliases ...string) {
		for _, a := range aliases {
			unitAliases[a] = info
		}
	}
	thousandth := decimal.New(1, -3)
	one := decimal.NewFromInt(1)

	register(unitInfo{"kg", unitFamilyMass, one}, "kg", "kgs", "kilo", "kilos", "kilogramo", "kilogramos")
	register(unitInfo{"g", unitFamilyMass, thousandth}, "g", "gr", "grs", "gramo", "gramos")
	register(unitInfo{"l", unitFamilyVolume, one}, "l", "lt", "litro", "litros")
	register(unitInfo{"ml", unitFamilyVolume, thousandth}, "ml", "mililitro", "mililitros")
	register(unitInfo{"cl", unitFamilyVolume, decimal.New(1, -2)}, "cl", "centilitro", "centilitros")
	register(unitInfo{"ud", unitFamilyCount, one}, "ud", "uds", "u", "unidad", "unidades", "pcs", "pieza", "piezas")
}

// NormalizeUnit приводит обозначение к каноническому виду; неизвестные единицы
// возвращаются в нижнем регистре как есть
func NormalizeUnit(unit string) string {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if info, ok := unitAliases[unit]; ok {
		return info.canonical
	}
	return unit
}

// ConvertQuantity пересчитывает quantity из from в to (4 знака).
// Одинаковые единицы, включая неизвестные, не пересчитываются.
// Масса в объем и обратно не переводится: плотность продукта неизвестна.
func ConvertQuantity(quantity float64, from, to string) (float64, error) {
	from, to = strings.ToLower(strings.TrimSpace(from)), strings.ToLower(strings.TrimSpace(to))
	if NormalizeUnit(from) == NormalizeUnit(to) {
		return round4(quantity), nil
	}

	src, okFrom := unitAliases[from]
	dst, okTo := unitAliases[to]
	if !okFrom || !okTo {
		return 0, fmt.Errorf("unidad desconocida: %s -> %s", from, to)
	}
	if src.family != dst.family {
		return 0, fmt.Errorf("no se puede convertir %s (%s) a %s (%s)", src.canonical, src.family, dst.canonical, dst.family)
	}

	converted, _ := decimal.NewFromFloat(quantity).Mul(src.factor).Div(dst.factor).Round(4).Float64()
	return converted, nil
}
