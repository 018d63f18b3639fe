package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/protocol"
	"github.com/masterblaster1999/Nebula4X-sub001/internal/sim/world"
)

const (
	Version = 1

	ExtJSON = ".json"
	ExtZstd = ".json.zst"
)

var ErrNoSnapshot = errors.New("snapshot: no snapshot found")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Day     int64  `json:"day"`
	Hour    int    `json:"hour"`
}

// Snapshot is one decoded world file. Raw keeps the exact world JSON so
// digests and stored revisions are byte-stable; Doc is the same bytes decoded
// generically for pointer queries.
type Snapshot struct {
	Header Header
	Raw    []byte
	World  *world.State
	Doc    any
}

// Decode parses raw world JSON into both representations and validates it.
func Decode(raw []byte) (Snapshot, error) {
	var snap Snapshot
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return snap, fmt.Errorf("snapshot json: %w", err)
	}
	if err := protocol.Validate(protocol.SchemaWorld, doc); err != nil {
		return snap, err
	}
	st, err := world.Decode(raw)
	if err != nil {
		return snap, err
	}
	snap.Raw = raw
	snap.Doc = doc
	snap.World = st
	snap.Header = Header{Version: Version, Day: st.Date.Day, Hour: st.Date.Hour}
	return snap, nil
}

// WriteSnapshot stores snap.Raw. A ".json.zst" path gets a zstd stream whose
// first line is the JSON header; any other path is written as plain JSON.
func WriteSnapshot(path string, snap Snapshot) error {
	if len(snap.Raw) == 0 {
		return fmt.Errorf("snapshot: empty world body")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap, strings.HasSuffix(path, ExtZstd)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap Snapshot, compress bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if !compress {
		_, err := f.Write(snap.Raw)
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	h := snap.Header
	if h.Version == 0 {
		h.Version = Version
	}
	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(snap.Raw); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot loads a snapshot written by the game or by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ExtZstd) {
		raw, err := io.ReadAll(f)
		if err != nil {
			return Snapshot{}, err
		}
		return Decode(raw)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Snapshot{}, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot header: %w", err)
	}
	if h.Version != Version {
		return Snapshot{}, fmt.Errorf("snapshot: unsupported version %d", h.Version)
	}
	raw, err := io.ReadAll(br)
	if err != nil {
		return Snapshot{}, fmt.Errorf("zstd decode: %w", err)
	}
	snap, err := Decode(raw)
	if err != nil {
		return snap, err
	}
	snap.Header.WorldID = h.WorldID
	return snap, nil
}

// LatestSnapshot returns the most recently modified snapshot file in dir.
// Ties are broken by name so the choice is stable.
func LatestSnapshot(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod int64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ExtZstd) && !strings.HasSuffix(name, ExtJSON) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if best == "" || mod > bestMod || (mod == bestMod && name > filepath.Base(best)) {
			bestMod = mod
			best = filepath.Join(dir, name)
		}
	}
	if best == "" {
		return "", ErrNoSnapshot
	}
	return best, nil
}
