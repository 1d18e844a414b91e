// Package conformer holds the value types shared by every stage of conformer
// generation: coordinate records and their pooled cache, run settings, the
// status taxonomy and the cancellation control polled by long-running loops.
package conformer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Record is one candidate structure: coordinates indexed by global atom index
// and an energy that stays undefined (NaN) until set.
//
// Records are owned by exactly one pool (a fragment tree node or the
// orchestrator's working list) and are recycled through a Cache.
type Record struct {
	Coords []r3.Vec
	Energy float64
}

// NewRecord allocates a record for numAtoms atoms with undefined energy.
func NewRecord(numAtoms int) *Record {
	return &Record{Coords: make([]r3.Vec, numAtoms), Energy: math.NaN()}
}

// HasEnergy reports whether the energy has been set.
func (r *Record) HasEnergy() bool { return !math.IsNaN(r.Energy) }

// Reset zeroes the coordinates and clears the energy.
func (r *Record) Reset() {
	for i := range r.Coords {
		r.Coords[i] = r3.Vec{}
	}
	r.Energy = math.NaN()
}

// CopyFrom overwrites r with src. The coordinate slice is resized as needed.
func (r *Record) CopyFrom(src *Record) {
	if cap(r.Coords) < len(src.Coords) {
		r.Coords = make([]r3.Vec, len(src.Coords))
	}
	r.Coords = r.Coords[:len(src.Coords)]
	copy(r.Coords, src.Coords)
	r.Energy = src.Energy
}

// Swap exchanges the contents of r and other without copying coordinates.
func (r *Record) Swap(other *Record) {
	r.Coords, other.Coords = other.Coords, r.Coords
	r.Energy, other.Energy = other.Energy, r.Energy
}

// Detach returns a cache-independent copy.
func (r *Record) Detach() Data {
	c := make([]r3.Vec, len(r.Coords))
	copy(c, r.Coords)
	return Data{Coords: c, Energy: r.Energy}
}

// Data is a conformer that has left the engine: it owns its coordinates.
type Data struct {
	Coords []r3.Vec `json:"coords"`
	Energy float64  `json:"energy"`
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	c := make([]r3.Vec, len(d.Coords))
	copy(c, d.Coords)
	return Data{Coords: c, Energy: d.Energy}
}

// ByEnergy orders conformers by ascending energy; undefined energies sort last.
func ByEnergy(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	}
	return a < b
}

//Personal.AI order the ending
