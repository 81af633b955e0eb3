package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Load reads an artifact back from disk, transparently decompressing .gz
// output, and checks the schema version before returning it.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		zr, zerr := gzip.NewReader(bytes.NewReader(data))
		if zerr != nil {
			return nil, fmt.Errorf("failed to open gzip artifact: %w", zerr)
		}
		data, err = io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decompress artifact: %w", err)
		}
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	if a.Header.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported artifact schema version %d (expected %d)", a.Header.SchemaVersion, SchemaVersion)
	}
	return &a, nil
}
