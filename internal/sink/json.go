package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/1ureka/abxclient/internal/protocol"
)

// JSONFile writes the packets as an indented JSON array. Path "-" writes to
// Stdout instead of a file; otherwise the file is replaced atomically.
type JSONFile struct {
	Path   string
	Stdout io.Writer
}

func (j *JSONFile) Write(_ context.Context, packets []protocol.Packet) error {
	data, err := json.MarshalIndent(records(packets), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode packets: %w", err)
	}
	data = append(data, '\n')

	if j.Path == "-" {
		w := j.Stdout
		if w == nil {
			w = os.Stdout
		}
		_, err := w.Write(data)
		return err
	}

	return writeAtomic(j.Path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
