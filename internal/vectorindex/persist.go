package vectorindex

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
	"github.com/dgallion1/docqa/internal/llm"
)

const (
	VectorFile   = "index.vec"
	MetadataFile = "index.json"

	formatVersion = 1
)

var vecMagic = [4]byte{'D', 'Q', 'V', 'I'}

// vecHeader precedes count*dim little-endian float32 values in VectorFile.
type vecHeader struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Count     uint64
}

type metadataFile struct {
	Version   int              `json:"version"`
	Dimension int              `json:"dimension"`
	Count     int              `json:"count"`
	Chunks    []document.Chunk `json:"chunks"`
}

// Save writes the index to dir, creating it if needed. Each file is replaced
// atomically; the vector file is written first.
func (x *Index) Save(dir string) error {
	x.mu.RLock()
	dim := x.dim
	var vecBuf bytes.Buffer
	vecBuf.Grow(binary.Size(vecHeader{}) + len(x.vectors)*dim*4)
	hdr := vecHeader{Magic: vecMagic, Version: formatVersion, Dimension: uint32(dim), Count: uint64(len(x.vectors))}
	// bytes.Buffer writes never fail.
	_ = binary.Write(&vecBuf, binary.LittleEndian, hdr)
	for _, v := range x.vectors {
		_ = binary.Write(&vecBuf, binary.LittleEndian, v)
	}
	meta, err := json.MarshalIndent(metadataFile{
		Version:   formatVersion,
		Dimension: dim,
		Count:     len(x.chunks),
		Chunks:    x.chunks,
	}, "", "  ")
	x.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index metadata: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, VectorFile), vecBuf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", VectorFile, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, MetadataFile), meta); err != nil {
		return fmt.Errorf("write %s: %w", MetadataFile, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Exists reports whether dir holds both index files.
func Exists(dir string) bool {
	return isRegular(filepath.Join(dir, VectorFile)) && isRegular(filepath.Join(dir, MetadataFile))
}

func isRegular(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Load reads an index saved by Save. Searches and additions on the result
// embed with emb, which must use the same model the index was built with.
func Load(dir string, emb llm.Embedder) (*Index, error) {
	for _, name := range []string{VectorFile, MetadataFile} {
		if !isRegular(filepath.Join(dir, name)) {
			return nil, &errs.StoreNotFoundError{Path: dir, Missing: name}
		}
	}
	corrupt := func(err error) error { return &errs.StoreCorruptError{Path: dir, Err: err} }

	vecs, dim, err := readVectors(filepath.Join(dir, VectorFile))
	if err != nil {
		return nil, corrupt(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, corrupt(err)
	}
	var meta metadataFile
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, corrupt(fmt.Errorf("decode %s: %w", MetadataFile, err))
	}
	switch {
	case meta.Version != formatVersion:
		return nil, corrupt(fmt.Errorf("unsupported metadata version %d", meta.Version))
	case meta.Count != len(meta.Chunks):
		return nil, corrupt(fmt.Errorf("metadata count %d does not match %d chunks", meta.Count, len(meta.Chunks)))
	case len(meta.Chunks) != len(vecs):
		return nil, corrupt(fmt.Errorf("%d chunks but %d vectors", len(meta.Chunks), len(vecs)))
	case meta.Dimension != dim:
		return nil, corrupt(fmt.Errorf("metadata dimension %d does not match vector dimension %d", meta.Dimension, dim))
	}

	return &Index{
		emb:     emb,
		dim:     dim,
		vectors: vecs,
		chunks:  meta.Chunks,
	}, nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}

	var hdr vecHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != vecMagic {
		return nil, 0, errors.New("bad magic")
	}
	if hdr.Version != formatVersion {
		return nil, 0, fmt.Errorf("unsupported vector version %d", hdr.Version)
	}
	if hdr.Count > 0 && hdr.Dimension == 0 {
		return nil, 0, errors.New("zero dimension")
	}
	want := uint64(binary.Size(hdr)) + hdr.Count*uint64(hdr.Dimension)*4
	if hdr.Count > math.MaxInt32 || uint64(fi.Size()) != want {
		return nil, 0, fmt.Errorf("file size %d does not match header (%d vectors of dimension %d)", fi.Size(), hdr.Count, hdr.Dimension)
	}

	dim := int(hdr.Dimension)
	vecs := make([][]float32, hdr.Count)
	for i := range vecs {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, 0, fmt.Errorf("read vector %d: %w", i, err)
		}
		vecs[i] = v
	}
	return vecs, dim, nil
}
