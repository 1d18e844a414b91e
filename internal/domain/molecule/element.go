package molecule

import (
	"strings"
)

// Element holds the per-element constants the graph and geometry code needs.
type Element struct {
	Number         int
	Symbol         string
	CovalentRadius float64 // Å
	VdWRadius      float64 // Å, Bondi
	Known          bool
}

var elements = []Element{
	{1, "H", 0.31, 1.10, true},
	{2, "He", 0.28, 1.40, true},
	{3, "Li", 1.28, 1.82, true},
	{5, "B", 0.84, 1.92, true},
	{6, "C", 0.76, 1.70, true},
	{7, "N", 0.71, 1.55, true},
	{8, "O", 0.66, 1.52, true},
	{9, "F", 0.57, 1.47, true},
	{11, "Na", 1.66, 2.27, true},
	{12, "Mg", 1.41, 1.73, true},
	{14, "Si", 1.11, 2.10, true},
	{15, "P", 1.07, 1.80, true},
	{16, "S", 1.05, 1.80, true},
	{17, "Cl", 1.02, 1.75, true},
	{19, "K", 2.03, 2.75, true},
	{20, "Ca", 1.76, 2.31, true},
	{26, "Fe", 1.32, 2.00, true},
	{29, "Cu", 1.32, 1.40, true},
	{30, "Zn", 1.22, 1.39, true},
	{34, "Se", 1.20, 1.90, true},
	{35, "Br", 1.20, 1.85, true},
	{53, "I", 1.39, 1.98, true},
}

var (
	bySymbol = map[string]Element{}
	byNumber = map[int]Element{}
)

func init() {
	for _, e := range elements {
		bySymbol[strings.ToLower(e.Symbol)] = e
		byNumber[e.Number] = e
	}
}

// unknownElement is returned for symbols outside the table. Geometry code can
// still work with it; strict force-field setup rejects it.
var unknownElement = Element{Number: 0, Symbol: "*", CovalentRadius: 0.80, VdWRadius: 1.80}

// LookupElement resolves a case-insensitive element symbol.
func LookupElement(symbol string) (Element, bool) {
	e, ok := bySymbol[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		u := unknownElement
		u.Symbol = symbol
		return u, false
	}
	return e, true
}

// ElementByNumber resolves an atomic number.
func ElementByNumber(n int) (Element, bool) {
	e, ok := byNumber[n]
	if !ok {
		return unknownElement, false
	}
	return e, true
}

// IsHeteroatom reports whether the atomic number is neither carbon nor hydrogen.
func IsHeteroatom(n int) bool {
	return n != 1 && n != 6
}

//Personal.AI order the ending
