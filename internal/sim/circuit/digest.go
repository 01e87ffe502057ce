package circuit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"voxelcircuit.ai/internal/sim/circuit/grid"
	"voxelcircuit.ai/internal/sim/circuit/kernel/model"
)

// Digest hashes position, kind and signal of every voxel in sorted order. Voxel IDs
// are not part of the state and are left out.
func Digest(g *grid.Grid) string {
	return digestVoxels(g.Sorted())
}

func digestVoxels(vs []model.Voxel) string {
	h := sha256.New()
	var buf [8]byte
	w64 := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	w64(int64(len(vs)))
	for _, v := range vs {
		w64(int64(v.Pos.X))
		w64(int64(v.Pos.Y))
		w64(int64(v.Pos.Z))
		flag := byte(0)
		if v.Signal {
			flag = 1
		}
		h.Write([]byte{byte(v.Kind), flag})
	}
	return hex.EncodeToString(h.Sum(nil))
}
