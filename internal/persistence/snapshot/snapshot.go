package snapshot

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const Version = 1

// Suffix is the file name suffix of compressed autosaves: <tick>.save.json.zst.
const Suffix = ".save.json.zst"

type Header struct {
	Version int    `json:"version"`
	World   string `json:"world,omitempty"`
	Tick    uint64 `json:"tick"`
}

// SaveV1 is the on-disk world layout. Files written without a header (older saves)
// decode with a nil Header.
type SaveV1 struct {
	Header *Header   `json:"header,omitempty"`
	Voxels []VoxelV1 `json:"voxels"`
}

// VoxelV1 is encoded as a 3-element JSON array: [[x,y,z],"Kind",signal].
type VoxelV1 struct {
	Pos    [3]int
	Kind   string
	Signal bool
}

func (v VoxelV1) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Pos, v.Kind, v.Signal})
}

func (v *VoxelV1) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "voxel entry")
	}
	if len(raw) != 3 {
		return errors.Errorf("voxel entry: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &v.Pos); err != nil {
		return errors.Wrap(err, "voxel position")
	}
	if err := json.Unmarshal(raw[1], &v.Kind); err != nil {
		return errors.Wrap(err, "voxel kind")
	}
	if err := json.Unmarshal(raw[2], &v.Signal); err != nil {
		return errors.Wrap(err, "voxel signal")
	}
	return nil
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

// Write stores s at path, zstd-compressed when path ends in ".zst". The file is
// written next to its destination and renamed into place.
func Write(path string, s SaveV1) error {
	if s.Voxels == nil {
		s.Voxels = []VoxelV1{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create save dir")
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "create save")
	}
	if err := encode(f, path, s); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "close save")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "rename save")
	}
	return nil
}

func encode(w io.Writer, path string, s SaveV1) error {
	if !compressed(path) {
		bw := bufio.NewWriterSize(w, 64*1024)
		if err := json.NewEncoder(bw).Encode(&s); err != nil {
			return err
		}
		return bw.Flush()
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := json.NewEncoder(bw).Encode(&s); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read loads a save written by Write or by older builds (plain JSON, no header).
func Read(path string) (SaveV1, error) {
	var s SaveV1
	f, err := os.Open(path)
	if err != nil {
		return s, errors.Wrap(err, "open save")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReaderSize(f, 64*1024)
	if compressed(path) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return s, errors.Wrap(err, "zstd reader")
		}
		defer dec.Close()
		r = dec
	}
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return SaveV1{}, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	if s.Header != nil && s.Header.Version > Version {
		return SaveV1{}, errors.Errorf("save version %d is newer than supported %d", s.Header.Version, Version)
	}
	return s, nil
}

// PathFor returns the autosave path for tick inside dir.
func PathFor(dir string, tick uint64) string {
	return filepath.Join(dir, strconv.FormatUint(tick, 10)+Suffix)
}

// Latest returns the autosave in dir with the highest tick, or "" if there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, Suffix) {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, Suffix), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
