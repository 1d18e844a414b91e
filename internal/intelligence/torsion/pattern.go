package torsion

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Linear four-atom patterns
// ─────────────────────────────────────────────────────────────────────────────
//
// A pattern is a SMARTS-like chain a1 b1 a2 b2 a3 b3 a4. Atoms are either
// bracket expressions or bare organic-subset symbols; bonds are optional and
// default to "single or aromatic".
//
// Atom primitives: element symbols (upper case aliphatic, lower case aromatic),
// *, a, A, #n, Xn (total degree), Dn (heavy degree), Hn (hydrogen count),
// ^n (1 sp, 2 sp2, 3 sp3), R / R0 (ring membership), +n, -n.
// Bond primitives: - = # : ~ @.
// Operators: ! (not), & or juxtaposition (and), "," (or), ";" (low and).

type predicate func(m *molecule.Molecule, idx int) bool

func and(a, b predicate) predicate {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) && b(m, i) }
}

func or(a, b predicate) predicate {
	return func(m *molecule.Molecule, i int) bool { return a(m, i) || b(m, i) }
}

func not(a predicate) predicate {
	return func(m *molecule.Molecule, i int) bool { return !a(m, i) }
}

func anything(*molecule.Molecule, int) bool { return true }

// Pattern is a compiled linear torsion pattern.
type Pattern struct {
	source string
	atoms  [4]predicate
	bonds  [3]predicate
}

// String returns the pattern source.
func (p *Pattern) String() string { return p.source }

// ParsePattern compiles a pattern string.
func ParsePattern(s string) (*Pattern, error) {
	p := &Pattern{source: s}
	pos := 0
	for k := 0; k < 4; k++ {
		if k > 0 {
			start := pos
			for pos < len(s) && strings.IndexByte("-=#:~@!,;&", s[pos]) >= 0 {
				pos++
			}
			bond, err := parseBondExpr(s[start:pos])
			if err != nil {
				return nil, patternError(s, err.Error())
			}
			p.bonds[k-1] = bond
		}
		if pos >= len(s) {
			return nil, patternError(s, "expected four atoms")
		}
		atom, n, err := parseAtom(s[pos:])
		if err != nil {
			return nil, patternError(s, err.Error())
		}
		p.atoms[k] = atom
		pos += n
	}
	if pos != len(s) {
		return nil, patternError(s, "trailing characters")
	}
	return p, nil
}

// MustParsePattern is ParsePattern that panics on error.
func MustParsePattern(s string) *Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func patternError(src, msg string) error {
	return errors.New(errors.ErrCodeTorsionPatternInvalid, "invalid torsion pattern").WithDetailf("%q: %s", src, msg)
}

// MatchBond returns every mapping of the pattern onto bond with the central
// pattern atoms pinned to the bond atoms, in either orientation. Mappings are
// reported with Atoms[1] == bond.Begin.
func (p *Pattern) MatchBond(m *molecule.Molecule, bond int) [][4]int {
	b := m.Bonds[bond]
	var out [][4]int
	for _, o := range [2][2]int{{b.Begin, b.End}, {b.End, b.Begin}} {
		a2, a3 := o[0], o[1]
		if !p.atoms[1](m, a2) || !p.atoms[2](m, a3) || !p.bonds[1](m, bond) {
			continue
		}
		for _, n1 := range m.Neighbors(a2) {
			if n1.Atom == a3 || !p.atoms[0](m, n1.Atom) || !p.bonds[0](m, n1.Bond) {
				continue
			}
			for _, n4 := range m.Neighbors(a3) {
				if n4.Atom == a2 || n4.Atom == n1.Atom || !p.atoms[3](m, n4.Atom) || !p.bonds[2](m, n4.Bond) {
					continue
				}
				mapping := [4]int{n1.Atom, a2, a3, n4.Atom}
				if a2 != b.Begin {
					mapping = [4]int{n4.Atom, a3, a2, n1.Atom}
				}
				if !containsMapping(out, mapping) {
					out = append(out, mapping)
				}
			}
		}
	}
	return out
}

// MatchesBond reports whether the pattern maps onto bond at all.
func (p *Pattern) MatchesBond(m *molecule.Molecule, bond int) bool {
	return len(p.MatchBond(m, bond)) > 0
}

func containsMapping(list [][4]int, m [4]int) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Expression parsing
// ─────────────────────────────────────────────────────────────────────────────

type exprParser struct {
	s    string
	pos  int
	prim func(p *exprParser) (predicate, error)
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *exprParser) parse() (predicate, error) {
	e, err := p.lowAnd()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, errors.Newf(errors.ErrCodeTorsionPatternInvalid, "unexpected %q", p.s[p.pos:])
	}
	return e, nil
}

func (p *exprParser) lowAnd() (predicate, error) {
	e, err := p.orExpr()
	for err == nil && p.peek() == ';' {
		p.pos++
		var r predicate
		if r, err = p.orExpr(); err == nil {
			e = and(e, r)
		}
	}
	return e, err
}

func (p *exprParser) orExpr() (predicate, error) {
	e, err := p.highAnd()
	for err == nil && p.peek() == ',' {
		p.pos++
		var r predicate
		if r, err = p.highAnd(); err == nil {
			e = or(e, r)
		}
	}
	return e, err
}

func (p *exprParser) highAnd() (predicate, error) {
	e, err := p.unary()
	for err == nil {
		c := p.peek()
		if c == '&' {
			p.pos++
		} else if c == 0 || c == ',' || c == ';' {
			break
		}
		var r predicate
		if r, err = p.unary(); err == nil {
			e = and(e, r)
		}
	}
	return e, err
}

func (p *exprParser) unary() (predicate, error) {
	if p.peek() == '!' {
		p.pos++
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return not(e), nil
	}
	if p.pos >= len(p.s) {
		return nil, errors.New(errors.ErrCodeTorsionPatternInvalid, "unexpected end of expression")
	}
	return p.prim(p)
}

func (p *exprParser) number(def int) int {
	start := p.pos
	for p.pos < len(p.s) && unicode.IsDigit(rune(p.s[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return def
	}
	n, _ := strconv.Atoi(p.s[start:p.pos])
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Bonds
// ─────────────────────────────────────────────────────────────────────────────

func defaultBond(m *molecule.Molecule, b int) bool {
	bond := m.Bonds[b]
	return bond.Aromatic || bond.Order == 1
}

func parseBondExpr(s string) (predicate, error) {
	if s == "" {
		return defaultBond, nil
	}
	p := &exprParser{s: s, prim: bondPrimitive}
	return p.parse()
}

func bondPrimitive(p *exprParser) (predicate, error) {
	c := p.s[p.pos]
	p.pos++
	switch c {
	case '-':
		return func(m *molecule.Molecule, b int) bool { return m.Bonds[b].Order == 1 && !m.Bonds[b].Aromatic }, nil
	case '=':
		return func(m *molecule.Molecule, b int) bool { return m.Bonds[b].Order == 2 && !m.Bonds[b].Aromatic }, nil
	case '#':
		return func(m *molecule.Molecule, b int) bool { return m.Bonds[b].Order == 3 }, nil
	case ':':
		return func(m *molecule.Molecule, b int) bool { return m.Bonds[b].Aromatic }, nil
	case '~':
		return anything, nil
	case '@':
		return func(m *molecule.Molecule, b int) bool { return m.IsRingBond(b) }, nil
	}
	return nil, errors.Newf(errors.ErrCodeTorsionPatternInvalid, "unknown bond primitive %q", c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Atoms
// ─────────────────────────────────────────────────────────────────────────────

var bareSymbols = []string{"Cl", "Br", "B", "C", "N", "O", "P", "S", "F", "I", "b", "c", "n", "o", "p", "s", "*"}

// parseAtom parses one atom at the start of s and returns the consumed length.
func parseAtom(s string) (predicate, int, error) {
	if s[0] == '[' {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, 0, errors.New(errors.ErrCodeTorsionPatternInvalid, "unterminated bracket atom")
		}
		body := s[1:end]
		if body == "H" {
			return elementPredicate(1, false, true), end + 1, nil
		}
		p := &exprParser{s: body, prim: atomPrimitive}
		e, err := p.parse()
		return e, end + 1, err
	}
	for _, sym := range bareSymbols {
		if strings.HasPrefix(s, sym) {
			p := &exprParser{s: sym, prim: atomPrimitive}
			e, err := p.parse()
			return e, len(sym), err
		}
	}
	return nil, 0, errors.Newf(errors.ErrCodeTorsionPatternInvalid, "unexpected %q", s)
}

func elementPredicate(number int, aromatic, anyAromaticity bool) predicate {
	return func(m *molecule.Molecule, i int) bool {
		a := m.Atoms[i]
		return a.Number == number && (anyAromaticity || a.Aromatic == aromatic)
	}
}

func atomPrimitive(p *exprParser) (predicate, error) {
	c := p.s[p.pos]
	switch {
	case c == '*':
		p.pos++
		return anything, nil
	case c == '#':
		p.pos++
		n := p.number(-1)
		if n < 0 {
			return nil, errors.New(errors.ErrCodeTorsionPatternInvalid, "# needs an atomic number")
		}
		return elementPredicate(n, false, true), nil
	case c == 'a':
		if el, ok := p.element(true); ok {
			return el, nil
		}
		p.pos++
		return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].Aromatic }, nil
	case c == 'A':
		p.pos++
		return func(m *molecule.Molecule, i int) bool { return !m.Atoms[i].Aromatic }, nil
	case c == 'X':
		p.pos++
		n := p.number(1)
		return func(m *molecule.Molecule, i int) bool { return m.Degree(i) == n }, nil
	case c == 'D':
		p.pos++
		n := p.number(1)
		return func(m *molecule.Molecule, i int) bool { return m.HeavyDegree(i) == n }, nil
	case c == 'H':
		p.pos++
		n := p.number(1)
		return func(m *molecule.Molecule, i int) bool { return m.HydrogenCount(i) == n }, nil
	case c == '^':
		p.pos++
		n := p.number(-1)
		var h molecule.Hybridization
		switch n {
		case 1:
			h = molecule.HybridSP
		case 2:
			h = molecule.HybridSP2
		case 3:
			h = molecule.HybridSP3
		default:
			return nil, errors.New(errors.ErrCodeTorsionPatternInvalid, "^ needs 1, 2 or 3")
		}
		return func(m *molecule.Molecule, i int) bool { return m.HybridizationOf(i) == h }, nil
	case c == 'R':
		p.pos++
		n := p.number(-1)
		if n == 0 {
			return func(m *molecule.Molecule, i int) bool { return !m.IsRingAtom(i) }, nil
		}
		return func(m *molecule.Molecule, i int) bool { return m.IsRingAtom(i) }, nil
	case c == '+' || c == '-':
		sign := 1
		if c == '-' {
			sign = -1
		}
		p.pos++
		n := p.number(-1)
		if n < 0 {
			n = 1
			for p.peek() == c {
				p.pos++
				n++
			}
		}
		want := sign * n
		return func(m *molecule.Molecule, i int) bool { return m.Atoms[i].FormalCharge == want }, nil
	case unicode.IsUpper(rune(c)) || unicode.IsLower(rune(c)):
		if el, ok := p.element(unicode.IsLower(rune(c))); ok {
			return el, nil
		}
	}
	return nil, errors.Newf(errors.ErrCodeTorsionPatternInvalid, "unknown atom primitive %q", p.s[p.pos:])
}

// element consumes an element symbol, preferring two-letter symbols.
func (p *exprParser) element(aromatic bool) (predicate, bool) {
	try := func(n int) (predicate, bool) {
		if p.pos+n > len(p.s) {
			return nil, false
		}
		sym := p.s[p.pos : p.pos+n]
		if n == 2 && !unicode.IsLower(rune(sym[1])) {
			return nil, false
		}
		if aromatic {
			sym = strings.ToUpper(sym[:1]) + sym[1:]
		}
		el, ok := molecule.LookupElement(sym)
		if !ok || (aromatic && !aromaticElement(el.Number)) {
			return nil, false
		}
		p.pos += n
		return elementPredicate(el.Number, aromatic, false), true
	}
	if e, ok := try(2); ok {
		return e, true
	}
	return try(1)
}

func aromaticElement(n int) bool {
	switch n {
	case 5, 6, 7, 8, 15, 16, 33, 34:
		return true
	}
	return false
}

//Personal.AI order the ending
