package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ragbot/internal/domain"
)

// Artifact names inside an index directory.
const (
	manifestFile = "manifest.json"
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.jsonl"
)

// vectors.bin layout: magic, format version, dimension, count (uint32 LE),
// then count*dimension float32 values row-major.
var vectorsMagic = [4]byte{'R', 'B', 'V', 'X'}

const vectorsVersion = 1

// Manifest pins everything a reader must agree with the builder on: the
// embedding model, normalization and metric, plus the expected artifact
// sizes. It is written last; a directory without a manifest is an
// incomplete build.
type Manifest struct {
	Dimension      int       `json:"dimension"`
	Metric         string    `json:"metric"`
	Count          int       `json:"count"`
	EmbeddingModel string    `json:"embedding_model"`
	Normalized     bool      `json:"normalized"`
	BuiltAt        time.Time `json:"built_at"`
}

// Save persists the index as three artifacts. Each file is written to a
// temporary name and renamed into place, vectors and metadata before the
// manifest, so a reader either finds a complete consistent build or no
// manifest at all.
func Save(dir string, f *Flat, m Manifest) error {
	if f.Size() != len(f.records) {
		return fmt.Errorf("save: %d vectors, %d records: %w", f.Size(), len(f.records), domain.ErrCorruptIndex)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	m.Dimension = f.dim
	m.Metric = string(f.metric)
	m.Count = f.Size()
	if m.BuiltAt.IsZero() {
		m.BuiltAt = time.Now()
	}

	if err := writeAtomic(filepath.Join(dir, vectorsFile), func(w io.Writer) error {
		return writeVectors(w, f)
	}); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, rec := range f.records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, manifestFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Load reads an index directory and verifies its consistency: the manifest
// count, the vector matrix and the metadata record count must all agree,
// otherwise the index is refused.
func Load(dir string) (*Flat, Manifest, error) {
	var m Manifest

	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, m, fmt.Errorf("read manifest (incomplete or missing build?): %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, m, fmt.Errorf("parse manifest: %w", err)
	}

	f := NewFlat(Metric(m.Metric))

	if err := readVectors(filepath.Join(dir, vectorsFile), f); err != nil {
		return nil, m, err
	}

	records, err := readMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, m, err
	}
	f.records = records

	if f.Size() != len(records) || f.Size() != m.Count {
		return nil, m, fmt.Errorf("load %s: %d vectors, %d records, manifest says %d: %w",
			dir, f.Size(), len(records), m.Count, domain.ErrCorruptIndex)
	}
	if m.Dimension != 0 && f.dim != m.Dimension {
		return nil, m, fmt.Errorf("load %s: vector dimension %d, manifest says %d: %w",
			dir, f.dim, m.Dimension, domain.ErrCorruptIndex)
	}

	return f, m, nil
}

func writeVectors(w io.Writer, f *Flat) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(vectorsMagic[:]); err != nil {
		return err
	}
	header := []uint32{vectorsVersion, uint32(f.dim), uint32(f.Size())}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range f.vectors {
		if err := binary.Write(bw, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readVectors(path string, f *Flat) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read vectors header: %w", err)
	}
	if magic != vectorsMagic {
		return fmt.Errorf("read vectors: bad magic %q: %w", magic, domain.ErrCorruptIndex)
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return fmt.Errorf("read vectors header: %w", err)
		}
	}
	if version != vectorsVersion {
		return fmt.Errorf("read vectors: unsupported format version %d", version)
	}
	if dim == 0 && count != 0 {
		return fmt.Errorf("read vectors: zero dimension: %w", domain.ErrCorruptIndex)
	}

	f.dim = int(dim)
	f.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("read vector %d of %d: %w (%v)", i, count, domain.ErrCorruptIndex, err)
		}
		f.vectors = append(f.vectors, vec)
	}
	return nil
}

func readMetadata(path string) ([]domain.Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer file.Close()

	var records []domain.Chunk
	dec := json.NewDecoder(bufio.NewReader(file))
	for {
		var rec domain.Chunk
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parse metadata record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
