package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArchiveRun compresses every CSV in a completed run directory to
// .csv.zst and removes the originals. Returns the archived paths. Call
// only after the OutputManager is closed.
func ArchiveRun(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading run directory: %w", err)
	}

	var archived []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := src + ".zst"
		if err := compressFile(src, dst); err != nil {
			return archived, fmt.Errorf("archiving %s: %w", e.Name(), err)
		}
		if err := os.Remove(src); err != nil {
			return archived, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		archived = append(archived, dst)
	}

	return archived, nil
}

// ReadCompressed decompresses one archived file into memory.
func ReadCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening zstd reader: %w", err)
	}
	defer dec.Close()

	return io.ReadAll(dec)
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = out.Close()
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
