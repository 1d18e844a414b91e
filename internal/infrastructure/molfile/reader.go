// Package molfile reads and writes MDL V2000 molfiles and SD files.
package molfile

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

const (
	recordTerminator = "$$$$"
	endOfCTab        = "M  END"
	chargeProperty   = "M  CHG"
	maxLineLength    = 1 << 20
)

// chargeCodes maps the atom block charge column to formal charges. Code 4
// (doublet radical) carries no charge.
var chargeCodes = map[int]int{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

// Reader parses consecutive records from an SD file.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &Reader{sc: sc}
}

// Next returns the next molecule, or io.EOF when the input is exhausted.
func (r *Reader) Next() (*molecule.Molecule, error) {
	var header [4]string
	blank := true
	for i := range header {
		l, ok := r.scan()
		if !ok {
			if err := r.sc.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "read failed")
			}
			if blank {
				return nil, io.EOF
			}
			return nil, r.fail("truncated header")
		}
		header[i] = l
		blank = blank && strings.TrimSpace(l) == ""
	}

	mol := molecule.New(strings.TrimSpace(header[0]))
	counts := header[3]
	if strings.Contains(counts, "V3000") {
		return nil, r.fail("V3000 connection tables are not supported")
	}
	nAtoms, err1 := fixedInt(counts, 0, 3)
	nBonds, err2 := fixedInt(counts, 3, 6)
	if err1 != nil || err2 != nil || nAtoms < 0 || nBonds < 0 {
		return nil, r.fail("malformed counts line")
	}

	coords := make([]r3.Vec, nAtoms)
	positioned := false
	for i := 0; i < nAtoms; i++ {
		l, ok := r.scan()
		if !ok {
			return nil, r.fail("truncated atom block")
		}
		p, symbol, charge, err := parseAtomLine(l)
		if err != nil {
			return nil, r.fail(err.Error())
		}
		idx := mol.AddAtom(symbol)
		if mol.Atoms[idx].Number == 0 {
			return nil, errors.New(errors.ErrCodeMoleculeUnknownElement, "unknown element").
				WithDetailf("line %d: %q", r.line, symbol)
		}
		if charge != 0 {
			mol.SetFormalCharge(idx, charge)
		}
		coords[i] = p
		positioned = positioned || p != (r3.Vec{})
	}
	if positioned {
		for i, p := range coords {
			mol.SetCoord(i, p)
		}
	}

	for i := 0; i < nBonds; i++ {
		l, ok := r.scan()
		if !ok {
			return nil, r.fail("truncated bond block")
		}
		a, err1 := fixedInt(l, 0, 3)
		b, err2 := fixedInt(l, 3, 6)
		order, err3 := fixedInt(l, 6, 9)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, r.fail("malformed bond line")
		}
		if _, err := mol.AddBond(a-1, b-1, order); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidFormat, "invalid bond").
				WithDetailf("line %d", r.line)
		}
	}

	if err := r.readProperties(mol); err != nil {
		return nil, err
	}
	if err := r.readData(mol); err != nil {
		return nil, err
	}
	return mol, nil
}

// readProperties consumes the property block up to M  END. Any M  CHG line
// resets the charges given in the atom block.
func (r *Reader) readProperties(mol *molecule.Molecule) error {
	reset := false
	for {
		l, ok := r.scan()
		if !ok {
			// Some writers omit M  END on the last record.
			return nil
		}
		switch {
		case strings.HasPrefix(l, endOfCTab):
			return nil
		case strings.HasPrefix(l, chargeProperty):
			if !reset {
				for i := range mol.Atoms {
					if mol.Atoms[i].FormalCharge != 0 {
						mol.SetFormalCharge(i, 0)
					}
				}
				reset = true
			}
			if err := r.parseCharges(mol, l); err != nil {
				return err
			}
		case strings.TrimSpace(l) == recordTerminator:
			return r.fail("record ended inside connection table")
		}
	}
}

func (r *Reader) parseCharges(mol *molecule.Molecule, l string) error {
	f := strings.Fields(l[len(chargeProperty):])
	if len(f) == 0 {
		return r.fail("empty charge property")
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || len(f) < 1+2*n {
		return r.fail("malformed charge property")
	}
	for k := 0; k < n; k++ {
		atom, err1 := strconv.Atoi(f[1+2*k])
		charge, err2 := strconv.Atoi(f[2+2*k])
		if err1 != nil || err2 != nil || atom < 1 || atom > mol.AtomCount() {
			return r.fail("malformed charge property")
		}
		mol.SetFormalCharge(atom-1, charge)
	}
	return nil
}

// readData consumes SD data items up to the record terminator.
func (r *Reader) readData(mol *molecule.Molecule) error {
	var (
		name  string
		value []string
		open  bool
	)
	flush := func() {
		if open {
			mol.Props[name] = strings.Join(value, "\n")
		}
		open, value = false, nil
	}
	for {
		l, ok := r.scan()
		if !ok {
			flush()
			return r.sc.Err()
		}
		trimmed := strings.TrimSpace(l)
		switch {
		case trimmed == recordTerminator:
			flush()
			return nil
		case strings.HasPrefix(l, ">"):
			flush()
			start, end := strings.IndexByte(l, '<'), strings.LastIndexByte(l, '>')
			if start < 0 || end <= start {
				return r.fail("malformed data header")
			}
			name, open = l[start+1:end], true
		case trimmed == "":
			flush()
		case open:
			value = append(value, l)
		}
	}
}

func (r *Reader) scan() (string, bool) {
	if !r.sc.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimRight(r.sc.Text(), "\r"), true
}

func (r *Reader) fail(msg string) error {
	return errors.New(errors.ErrCodeMoleculeInvalidFormat, msg).WithDetailf("line %d", r.line)
}

func parseAtomLine(l string) (r3.Vec, string, int, error) {
	if len(l) < 34 {
		return r3.Vec{}, "", 0, errors.InvalidParam("atom line too short")
	}
	var p r3.Vec
	var err error
	if p.X, err = fixedFloat(l, 0, 10); err != nil {
		return p, "", 0, err
	}
	if p.Y, err = fixedFloat(l, 10, 20); err != nil {
		return p, "", 0, err
	}
	if p.Z, err = fixedFloat(l, 20, 30); err != nil {
		return p, "", 0, err
	}
	symbol := strings.TrimSpace(l[31:34])
	charge := 0
	if code, err := fixedInt(l, 36, 39); err == nil {
		charge = chargeCodes[code]
	}
	return p, symbol, charge, nil
}

func field(l string, from, to int) string {
	if from >= len(l) {
		return ""
	}
	if to > len(l) {
		to = len(l)
	}
	return strings.TrimSpace(l[from:to])
}

func fixedInt(l string, from, to int) (int, error) {
	s := field(l, from, to)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func fixedFloat(l string, from, to int) (float64, error) {
	return strconv.ParseFloat(field(l, from, to), 64)
}

// ReadAll parses every record of an SD stream.
func ReadAll(r io.Reader) ([]*molecule.Molecule, error) {
	rd := NewReader(r)
	var mols []*molecule.Molecule
	for {
		mol, err := rd.Next()
		if err == io.EOF {
			return mols, nil
		}
		if err != nil {
			return mols, err
		}
		mols = append(mols, mol)
	}
}

// ParseMolBlock parses a single molfile.
func ParseMolBlock(s string) (*molecule.Molecule, error) {
	mol, err := NewReader(strings.NewReader(s)).Next()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeMoleculeEmpty, "empty mol block")
	}
	return mol, err
}

func ReadFile(path string) ([]*molecule.Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "cannot open molecule file").WithDetail(path)
	}
	defer f.Close()
	return ReadAll(f)
}

//Personal.AI order the ending
