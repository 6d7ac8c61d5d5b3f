package instrument

import (
	"bytes"
	"fmt"
	"go/format"
	"os"

	"github.com/zeebo/xxh3"

	"github.com/callwatch/callwatch/internal/safe"
)

// Render formats a rewritten file back to source.
func Render(cf ChangedFile) ([]byte, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, cf.Fset, cf.AST); err != nil {
		return nil, fmt.Errorf("format %s: %w", cf.Path, err)
	}
	return buf.Bytes(), nil
}

// WriteIfChanged writes data to path atomically unless the on-disk content
// already matches, compared by content fingerprint. Reports whether a write
// happened.
func WriteIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil {
		if xxh3.Hash(existing) == xxh3.Hash(data) {
			return false, nil
		}
	}
	if err := safe.WriteFileAtomic(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
