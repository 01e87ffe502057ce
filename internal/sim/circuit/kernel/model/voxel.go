package model

import (
	"fmt"
	"strings"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(d Vec3i) Vec3i { return Vec3i{X: v.X + d.X, Y: v.Y + d.Y, Z: v.Z + d.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// Less orders positions by X, then Y, then Z.
func Less(a, b Vec3i) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

// Direction indexes the six axis-aligned neighbors.
type Direction int

const (
	PosX Direction = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ

	NumDirections = 6
)

var offsets = [NumDirections]Vec3i{
	PosX: {X: 1},
	NegX: {X: -1},
	PosY: {Y: 1},
	NegY: {Y: -1},
	PosZ: {Z: 1},
	NegZ: {Z: -1},
}

func (d Direction) Offset() Vec3i { return offsets[d] }

// Lateral reports whether d lies in the horizontal (X/Z) plane.
func (d Direction) Lateral() bool { return d != PosY && d != NegY }

// Neighbors returns the six axis-aligned neighbors of p, indexed by Direction.
func Neighbors(p Vec3i) [NumDirections]Vec3i {
	var out [NumDirections]Vec3i
	for d, off := range offsets {
		out[d] = p.Add(off)
	}
	return out
}

// Kind is the closed set of voxel behaviors. It never changes after placement.
type Kind uint8

const (
	Tile Kind = iota
	Wire
	Out
	Not
	And
	Or
	Xor
	Switch
	DFlipFlop

	numKinds
)

var kindNames = [numKinds]string{
	Tile:      "Tile",
	Wire:      "Wire",
	Out:       "Out",
	Not:       "Not",
	And:       "And",
	Or:        "Or",
	Xor:       "Xor",
	Switch:    "Switch",
	DFlipFlop: "DFlipFlop",
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

func (k Kind) Valid() bool { return k < numKinds }

// Drives reports whether a voxel of this kind can assert its signal into an adjacent Out.
func (k Kind) Drives() bool {
	switch k {
	case And, Or, Xor, Not, DFlipFlop, Switch:
		return true
	}
	return false
}

// AllKinds lists every kind in declaration order (the original hotbar order differs).
func AllKinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind accepts kind names in any letter case.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown voxel kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid voxel kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Voxel is the record stored at one grid coordinate.
//
// Signal is the only field owned by the simulation. ID is an opaque handle that
// editing/rendering collaborators use to recognize the same logical voxel; it is
// assigned at placement and not persisted.
type Voxel struct {
	Pos    Vec3i
	Kind   Kind
	Signal bool
	ID     uint64
}
