package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
)

// mappedFile is a read-only memory mapping of a PDF file. The bytes are only
// valid until Close.
type mappedFile struct {
	file *os.File
	data mmap.MMap
	info os.FileInfo
}

// openMapped maps path after checking it is a non-empty PDF within the size limit
func openMapped(path string, maxFileSize int64) (*mappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := checkFileInfo(path, info, maxFileSize); err != nil {
		file.Close()
		return nil, err
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("cannot map file: %w", err)
	}

	return &mappedFile{file: file, data: data, info: info}, nil
}

// Bytes returns the mapped file contents
func (m *mappedFile) Bytes() []byte {
	return m.data
}

// Close unmaps and closes the file
func (m *mappedFile) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.file.Close()
		return fmt.Errorf("cannot unmap file: %w", err)
	}
	return m.file.Close()
}

// ParseFile maps and parses the PDF at path. Parse errors carry the path.
func ParseFile(path string, maxFileSize int64) (*custom.Graph, error) {
	m, err := openMapped(path, maxFileSize)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	g, err := custom.Parse(m.Bytes())
	if err != nil {
		var pdfErr *pdferrors.PDFError
		if errors.As(err, &pdfErr) {
			pdfErr.WithFile(path)
		}
		return nil, err
	}
	return g, nil
}

// checkFileInfo performs the checks that need no file contents
func checkFileInfo(path string, info os.FileInfo, maxFileSize int64) error {
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}

	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}

	if info.Size() > maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			info.Size(), maxFileSize)
	}

	return nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never see a partial file
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot close output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot set output permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot move output into place: %w", err)
	}
	return nil
}
