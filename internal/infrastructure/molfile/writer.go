package molfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// SD data field names written for generated conformers.
const (
	FieldEnergy    = "ENERGY"
	FieldConformer = "CONFORMER"
)

const (
	maxV2000Atoms    = 999
	chargesPerLine   = 8
	defaultProgram   = "CONFGEN"
	energyPrecision  = 4
	coordinateFormat = "%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n"
)

// DataField is one SD data item.
type DataField struct {
	Name  string
	Value string
}

// Writer emits SD records.
type Writer struct {
	w       *bufio.Writer
	program string
	now     func() time.Time
}

type WriterOption func(*Writer)

// WithProgram sets the program name written to the header line.
func WithProgram(name string) WriterOption {
	return func(w *Writer) { w.program = name }
}

func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

func NewWriter(out io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{w: bufio.NewWriter(out), program: defaultProgram, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write emits one record with the given coordinates. Nil coords fall back to
// the molecule's input coordinates. The molecule's own properties are
// written before data, sorted by name; data wins on a name clash.
func (w *Writer) Write(mol *molecule.Molecule, coords []r3.Vec, data ...DataField) error {
	if mol == nil {
		return errors.InvalidParam("nil molecule")
	}
	if mol.AtomCount() > maxV2000Atoms {
		return errors.New(errors.ErrCodeMoleculeInvalidFormat, "too many atoms for V2000").
			WithDetailf("%d atoms", mol.AtomCount())
	}
	if coords == nil {
		coords = mol.Coords
	}
	if len(coords) != mol.AtomCount() {
		return errors.InvalidParam("coordinate count mismatch").
			WithDetailf("%d coordinates for %d atoms", len(coords), mol.AtomCount())
	}

	fmt.Fprintf(w.w, "%s\n", mol.Name)
	fmt.Fprintf(w.w, "  %-8s%s3D\n", truncate(w.program, 8), w.now().Format("0102061504"))
	fmt.Fprintln(w.w)
	fmt.Fprintf(w.w, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", mol.AtomCount(), mol.BondCount())

	var charged []int
	for i, a := range mol.Atoms {
		code := 0
		if c := a.FormalCharge; c >= -3 && c <= 3 && c != 0 {
			code = 4 - c
			charged = append(charged, i)
		} else if c != 0 {
			charged = append(charged, i)
		}
		p := coords[i]
		fmt.Fprintf(w.w, coordinateFormat, p.X, p.Y, p.Z, a.Symbol, code)
	}
	for _, b := range mol.Bonds {
		order := b.Order
		if b.Aromatic {
			order = molecule.OrderAromatic
		}
		fmt.Fprintf(w.w, "%3d%3d%3d  0\n", b.Begin+1, b.End+1, order)
	}
	for _, chunk := range lo.Chunk(charged, chargesPerLine) {
		fmt.Fprintf(w.w, "%s%3d", chargeProperty, len(chunk))
		for _, i := range chunk {
			fmt.Fprintf(w.w, " %3d %3d", i+1, mol.Atoms[i].FormalCharge)
		}
		fmt.Fprintln(w.w)
	}
	fmt.Fprintln(w.w, endOfCTab)

	names := lo.Filter(lo.Keys(mol.Props), func(name string, _ int) bool {
		return !lo.ContainsBy(data, func(d DataField) bool { return d.Name == name })
	})
	sort.Strings(names)
	for _, name := range names {
		writeData(w.w, name, mol.Props[name])
	}
	for _, d := range data {
		writeData(w.w, d.Name, d.Value)
	}
	_, err := fmt.Fprintln(w.w, recordTerminator)
	return err
}

// WriteConformers emits one record per conformer tagged with its energy and
// 1-based rank.
func (w *Writer) WriteConformers(mol *molecule.Molecule, confs []conformer.Data) error {
	for i, c := range confs {
		if err := w.Write(mol, c.Coords,
			DataField{Name: FieldEnergy, Value: strconv.FormatFloat(c.Energy, 'f', energyPrecision, 64)},
			DataField{Name: FieldConformer, Value: strconv.Itoa(i + 1)},
		); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "write failed")
	}
	return nil
}

// MarshalConformers renders an ensemble as an SD document.
func MarshalConformers(mol *molecule.Molecule, confs []conformer.Data, opts ...WriterOption) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, opts...)
	if err := w.WriteConformers(mol, confs); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseEnergy reads the energy data field written by WriteConformers.
func ParseEnergy(mol *molecule.Molecule) (float64, bool) {
	s, ok := mol.Props[FieldEnergy]
	if !ok {
		return 0, false
	}
	e, err := strconv.ParseFloat(s, 64)
	return e, err == nil
}

func writeData(w io.Writer, name, value string) {
	fmt.Fprintf(w, ">  <%s>\n%s\n\n", name, value)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

//Personal.AI order the ending
