package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// MigrationResult describes what Migrate did to the ledger file
type MigrationResult struct {
	Created   bool
	Migrated  bool
	OldHeader []string
	Missing   []string
	Obsolete  []string
}

// Migrate makes sure the ledger at path starts with header. A missing file is
// created. An outdated header is replaced in place; body rows are kept
// byte-for-byte and are not remapped to the new columns; a missing final
// newline is added so the next append starts on its own line.
func Migrate(path string, header []string, logger *zap.Logger) (MigrationResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		if err := writeFileAtomic(path, encodeHeader(header), nil); err != nil {
			return MigrationResult{}, fmt.Errorf("create ledger: %w", err)
		}
		logger.Info("ledger created", zap.String("path", path))
		return MigrationResult{Created: true}, nil
	}
	if err != nil {
		return MigrationResult{}, fmt.Errorf("read ledger: %w", err)
	}

	firstLine, body := splitFirstLine(data)
	oldHeader, err := csv.NewReader(strings.NewReader(string(firstLine))).Read()
	if err != nil {
		return MigrationResult{}, fmt.Errorf("parse ledger header: %w", err)
	}

	result := MigrationResult{OldHeader: oldHeader}
	present := make(map[string]bool, len(oldHeader))
	for _, field := range oldHeader {
		present[strings.TrimSpace(field)] = true
		if obsoleteFields[strings.TrimSpace(field)] {
			result.Obsolete = append(result.Obsolete, field)
		}
	}
	for _, field := range header {
		if !present[field] {
			result.Missing = append(result.Missing, field)
		}
	}

	if len(result.Missing) == 0 && len(result.Obsolete) == 0 {
		return result, nil
	}

	if len(oldHeader) != len(header) {
		logger.Warn("ledger header changed shape; existing rows keep their old column positions",
			zap.String("path", path),
			zap.Int("old_columns", len(oldHeader)),
			zap.Int("new_columns", len(header)),
			zap.Strings("missing", result.Missing),
			zap.Strings("obsolete", result.Obsolete))
	}

	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	if err := writeFileAtomic(path, encodeHeader(header), body); err != nil {
		return MigrationResult{}, fmt.Errorf("rewrite ledger header: %w", err)
	}
	result.Migrated = true
	logger.Info("ledger header migrated", zap.String("path", path))
	return result, nil
}

func encodeHeader(header []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	w.Flush()
	return buf.Bytes()
}

// splitFirstLine returns the first line without its terminator and everything after it
func splitFirstLine(data []byte) ([]byte, []byte) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return bytes.TrimRight(data, "\r"), nil
	}
	return bytes.TrimRight(data[:idx], "\r"), data[idx+1:]
}

// writeFileAtomic writes head followed by body to a temp file and renames it over path
func writeFileAtomic(path string, head, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(head); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
