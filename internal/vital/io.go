package vital

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// File layout, all little-endian:
//
//	magic "VPR1" | version uint16 | start unix-nanos int64 | trackCount uint32
//	per track: name, unit (uint16 length + bytes) | rate, minDisp, maxDisp
//	           float64 | color uint32 | recordCount uint32
//	per record: offset float64 | sampleCount uint32 | samples []float32
var magic = [4]byte{'V', 'P', 'R', '1'}

const (
	formatVersion = 1
	maxNameLen    = 4096
	maxRecords    = 1 << 26
)

// Open reads a recording from path.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()
	rec, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading recording %s: %w", path, err)
	}
	return rec, nil
}

// Read parses a recording from r.
func Read(r io.Reader) (*Recording, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if m != magic {
		return nil, fmt.Errorf("bad magic %q", m)
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	var startNanos int64
	if err := binary.Read(r, binary.LittleEndian, &startNanos); err != nil {
		return nil, fmt.Errorf("reading start time: %w", err)
	}
	var trackCount uint32
	if err := binary.Read(r, binary.LittleEndian, &trackCount); err != nil {
		return nil, fmt.Errorf("reading track count: %w", err)
	}
	if trackCount > maxRecords {
		return nil, fmt.Errorf("implausible track count %d", trackCount)
	}

	rec := &Recording{Start: time.Unix(0, startNanos).UTC()}
	for i := uint32(0); i < trackCount; i++ {
		track, err := readTrack(r)
		if err != nil {
			return nil, fmt.Errorf("reading track %d: %w", i, err)
		}
		rec.Tracks = append(rec.Tracks, track)
	}
	return rec, nil
}

func readTrack(r io.Reader) (*Track, error) {
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	unit, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("unit: %w", err)
	}
	t := &Track{Name: name, Unit: unit}
	for _, field := range []*float64{&t.Rate, &t.MinDisp, &t.MaxDisp} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("header field: %w", err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &t.Color); err != nil {
		return nil, fmt.Errorf("color: %w", err)
	}
	var recordCount uint32
	if err := binary.Read(r, binary.LittleEndian, &recordCount); err != nil {
		return nil, fmt.Errorf("record count: %w", err)
	}
	if recordCount > maxRecords {
		return nil, fmt.Errorf("implausible record count %d", recordCount)
	}
	for i := uint32(0); i < recordCount; i++ {
		var rc Record
		if err := binary.Read(r, binary.LittleEndian, &rc.Offset); err != nil {
			return nil, fmt.Errorf("record %d offset: %w", i, err)
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("record %d length: %w", i, err)
		}
		if n > maxRecords {
			return nil, fmt.Errorf("implausible record length %d", n)
		}
		rc.Values = make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, rc.Values); err != nil {
			return nil, fmt.Errorf("record %d samples: %w", i, err)
		}
		t.Records = append(t.Records, rc)
	}
	return t, nil
}

// Save writes the recording to path atomically by writing a temporary file
// in the same directory and renaming it into place.
func (rec *Recording) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vpr-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := rec.Write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("writing recording: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Write serialises the recording to w.
func (rec *Recording) Write(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(formatVersion)); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, rec.Start.UnixNano()); err != nil {
		return fmt.Errorf("writing start time: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(rec.Tracks))); err != nil {
		return fmt.Errorf("writing track count: %w", err)
	}
	for _, t := range rec.Tracks {
		if err := writeTrack(w, t); err != nil {
			return fmt.Errorf("writing track %s: %w", t.Name, err)
		}
	}
	return nil
}

func writeTrack(w io.Writer, t *Track) error {
	if err := writeString(w, t.Name); err != nil {
		return fmt.Errorf("name: %w", err)
	}
	if err := writeString(w, t.Unit); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	for _, field := range []float64{t.Rate, t.MinDisp, t.MaxDisp} {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("header field: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, t.Color); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Records))); err != nil {
		return fmt.Errorf("record count: %w", err)
	}
	for i, rc := range t.Records {
		if err := binary.Write(w, binary.LittleEndian, rc.Offset); err != nil {
			return fmt.Errorf("record %d offset: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(rc.Values))); err != nil {
			return fmt.Errorf("record %d length: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, rc.Values); err != nil {
			return fmt.Errorf("record %d samples: %w", i, err)
		}
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxNameLen {
		return "", fmt.Errorf("implausible string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > maxNameLen {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
