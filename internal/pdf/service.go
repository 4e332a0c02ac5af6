package pdf

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	pdferrors "github.com/a3tai/mcp-pdf-editor/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/merge"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/oplog"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pagerange"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/session"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/split"
)

// DefaultCacheEntries is the number of parsed documents kept by default
const DefaultCacheEntries = 16

// ErrUnknownSession is returned for a session handle that is not open
var ErrUnknownSession = pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "no such session")

// Service handles PDF file operations by orchestrating the editing engines.
// It is safe for concurrent use.
type Service struct {
	maxFileSize   int64
	validator     *Validator
	pathValidator *security.PathValidator
	cache         *GraphCache

	units      float64
	font       string
	dedup      bool
	duplicates split.DuplicateMode

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// sessionEntry serializes requests on one session
type sessionEntry struct {
	mu      sync.Mutex
	path    string
	session *session.Session
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCacheEntries sets how many parsed documents are kept; zero disables the cache
func WithCacheEntries(n int) ServiceOption {
	return func(s *Service) {
		s.cache = NewGraphCache(n, int64(max(n, 0))*s.maxFileSize)
	}
}

// WithUnits sets the authoring units per PDF point for new sessions
func WithUnits(scale float64) ServiceOption {
	return func(s *Service) {
		s.units = scale
	}
}

// WithFont sets the standard font sessions draw text with
func WithFont(font string) ServiceOption {
	return func(s *Service) {
		s.font = font
	}
}

// WithDedup makes every merge fold identical standard font dictionaries
func WithDedup(dedup bool) ServiceOption {
	return func(s *Service) {
		s.dedup = dedup
	}
}

// WithDuplicates sets how splits treat a page selected more than once
func WithDuplicates(mode split.DuplicateMode) ServiceOption {
	return func(s *Service) {
		s.duplicates = mode
	}
}

// NewService creates a new PDF service confined to configuredDirectory
func NewService(maxFileSize int64, configuredDirectory string, opts ...ServiceOption) (*Service, error) {
	pathValidator, err := security.NewPathValidator(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	s := &Service{
		maxFileSize:   maxFileSize,
		validator:     NewValidator(maxFileSize),
		pathValidator: pathValidator,
		units:         1,
		sessions:      make(map[string]*sessionEntry),
	}
	s.cache = NewGraphCache(DefaultCacheEntries, DefaultCacheEntries*maxFileSize)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.maxFileSize
}

// CacheStats returns the parsed-document cache statistics
func (s *Service) CacheStats() CacheStats {
	return s.cache.GetStats()
}

// ValidateConfiguration validates the service configuration
func (s *Service) ValidateConfiguration() error {
	if s.maxFileSize <= 0 {
		return fmt.Errorf("maxFileSize must be greater than 0")
	}

	if s.maxFileSize > 1024*1024*1024 { // 1GB limit
		return fmt.Errorf("maxFileSize cannot exceed 1GB")
	}

	if !(s.units > 0) {
		return fmt.Errorf("units must be greater than 0")
	}

	return nil
}

// LoadGraph parses the PDF at path, reusing a cached graph while the file is
// unchanged. The returned graph is shared and must not be modified.
func (s *Service) LoadGraph(path string) (*custom.Graph, error) {
	path, err := s.inputPath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if g, ok := s.cache.Get(path, info.ModTime(), info.Size()); ok {
		return g, nil
	}

	g, err := ParseFile(path, s.maxFileSize)
	if err != nil {
		return nil, err
	}

	s.cache.Put(path, info.ModTime(), info.Size(), g)
	return g, nil
}

// PDFPageCount returns the number of pages of a PDF file
func (s *Service) PDFPageCount(req PDFPageCountRequest) (*PDFPageCountResult, error) {
	path, err := s.inputPath(req.Path)
	if err != nil {
		return nil, err
	}
	g, err := s.LoadGraph(path)
	if err != nil {
		return nil, err
	}
	pages, err := g.PageCount()
	if err != nil {
		return nil, err
	}

	result := &PDFPageCountResult{Path: path, Pages: pages}
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	return result, nil
}

// PDFMerge concatenates the pages of several files into a new file
func (s *Service) PDFMerge(req PDFMergeRequest) (*PDFMergeResult, error) {
	if len(req.Paths) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "no documents to merge")
	}
	output, err := s.outputPath(req.Output)
	if err != nil {
		return nil, err
	}

	docs := make([]*custom.Graph, len(req.Paths))
	for i, path := range req.Paths {
		g, err := s.LoadGraph(path)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		docs[i] = g
	}

	out, err := merge.Merge(docs, merge.Options{DedupFonts: req.Dedup || s.dedup})
	if err != nil {
		return nil, err
	}
	data, err := custom.Serialize(out)
	if err != nil {
		return nil, err
	}
	verified, err := s.write(output, data)
	if err != nil {
		return nil, err
	}

	log.Printf("merged %d documents into %s (%d pages, %d bytes)", len(docs), output, verified.Pages, len(data))
	return &PDFMergeResult{
		Output:   output,
		Inputs:   len(docs),
		Pages:    verified.Pages,
		Size:     int64(len(data)),
		Verified: verified.Valid,
	}, nil
}

// PDFSplit writes the selected pages of a file, in selection order, to a new file
func (s *Service) PDFSplit(req PDFSplitRequest) (*PDFSplitResult, error) {
	output, err := s.outputPath(req.Output)
	if err != nil {
		return nil, err
	}
	g, err := s.LoadGraph(req.Path)
	if err != nil {
		return nil, err
	}
	count, err := g.PageCount()
	if err != nil {
		return nil, err
	}
	pages, err := pagerange.ParseRange(req.Pages, count)
	if err != nil {
		return nil, err
	}

	opts := split.Options{Duplicates: s.duplicates}
	if req.ShareDuplicates {
		opts.Duplicates = split.DuplicateShare
	}
	out, err := split.Split(g, pages, opts)
	if err != nil {
		return nil, err
	}
	data, err := custom.Serialize(out)
	if err != nil {
		return nil, err
	}
	verified, err := s.write(output, data)
	if err != nil {
		return nil, err
	}

	log.Printf("split %d pages of %s into %s", len(pages), req.Path, output)
	return &PDFSplitResult{
		Output:   output,
		Pages:    pages,
		Size:     int64(len(data)),
		Verified: verified.Valid,
	}, nil
}

// PDFVerify validates a file with the independent readers and optionally looks for text
func (s *Service) PDFVerify(req PDFVerifyRequest) (*PDFVerifyResult, error) {
	path, err := s.inputPath(req.Path)
	if err != nil {
		return nil, err
	}
	m, err := openMapped(path, s.maxFileSize)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	verified, err := s.validator.Verify(m.Bytes())
	if err != nil {
		return nil, err
	}

	result := &PDFVerifyResult{
		Path:    req.Path,
		Valid:   verified.Valid,
		Pages:   verified.Pages,
		Size:    verified.Size,
		Message: verified.Message,
	}
	if req.Text != "" && verified.Valid {
		found := false
		for _, text := range verified.Texts {
			if strings.Contains(text, req.Text) {
				found = true
				break
			}
		}
		result.ContainsText = &found
	}
	return result, nil
}

// OpenSession starts an editing session over a PDF file
func (s *Service) OpenSession(req PDFSessionOpenRequest) (*SessionInfo, error) {
	g, err := s.LoadGraph(req.Path)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(g, session.WithUnits(s.units), session.WithFont(s.font))
	if err != nil {
		return nil, err
	}

	entry := &sessionEntry{path: req.Path, session: sess}
	s.mu.Lock()
	s.sessions[sess.ID] = entry
	s.mu.Unlock()

	log.Printf("session %s: opened %s (%d pages)", sess.ID, req.Path, sess.PageCount())
	return entry.info(), nil
}

// SessionInfo describes an open session
func (s *Service) SessionInfo(id string) (*SessionInfo, error) {
	var info *SessionInfo
	err := s.withSession(id, func(e *sessionEntry) error {
		info = e.info()
		return nil
	})
	return info, err
}

// Sessions lists the open sessions, oldest first
func (s *Service) Sessions() []SessionInfo {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		infos = append(infos, *e.info())
		e.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.Before(infos[j].Created) })
	return infos
}

// CloseSession discards a session and its log
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return unknownSession(id)
	}
	log.Printf("session %s: closed", id)
	return nil
}

// ApplyEdit runs one action on a session
func (s *Service) ApplyEdit(req PDFSessionEditRequest) (*PDFSessionEditResult, error) {
	var result *PDFSessionEditResult
	err := s.withSession(req.SessionID, func(e *sessionEntry) error {
		added, err := e.session.Apply(req.Edit)
		if err != nil {
			return err
		}
		snap := e.session.Snapshot()
		result = &PDFSessionEditResult{
			SessionID: req.SessionID,
			Added:     added,
			UndoDepth: snap.UndoDepth,
			RedoDepth: snap.RedoDepth,
		}
		log.Printf("session %s: %q added %d operations", req.SessionID, req.Edit.Kind, len(added))
		return nil
	})
	return result, err
}

// Undo reverts the most recent action of a session
func (s *Service) Undo(id string) (*PDFSessionHistoryResult, error) {
	return s.history(id, "undo", (*session.Session).Undo)
}

// Redo re-applies the most recently undone action of a session
func (s *Service) Redo(id string) (*PDFSessionHistoryResult, error) {
	return s.history(id, "redo", (*session.Session).Redo)
}

func (s *Service) history(id, verb string, step func(*session.Session) ([]oplog.ID, error)) (*PDFSessionHistoryResult, error) {
	var result *PDFSessionHistoryResult
	err := s.withSession(id, func(e *sessionEntry) error {
		affected, err := step(e.session)
		if err != nil {
			return err
		}
		snap := e.session.Snapshot()
		result = &PDFSessionHistoryResult{
			SessionID: id,
			Affected:  affected,
			UndoDepth: snap.UndoDepth,
			RedoDepth: snap.RedoDepth,
		}
		log.Printf("session %s: %s touched %d operations", id, verb, len(affected))
		return nil
	})
	return result, err
}

// ListOperations returns a session's committed operations and history depths
func (s *Service) ListOperations(id string) (*PDFSessionOperationsResult, error) {
	var result *PDFSessionOperationsResult
	err := s.withSession(id, func(e *sessionEntry) error {
		result = &PDFSessionOperationsResult{SessionID: id, Snapshot: e.session.Snapshot()}
		return nil
	})
	return result, err
}

// ExportSession writes a session's document with its committed operations applied
func (s *Service) ExportSession(req PDFSessionExportRequest) (*PDFSessionExportResult, error) {
	mode, err := export.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.Rebase && mode != export.ModeFlatten {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidOperation, "rebase requires flatten mode")
	}
	output, err := s.outputPath(req.Output)
	if err != nil {
		return nil, err
	}

	var result *PDFSessionExportResult
	err = s.withSession(req.SessionID, func(e *sessionEntry) error {
		data, err := e.session.Export(mode)
		if err != nil {
			return err
		}
		verified, err := s.write(output, data)
		if err != nil {
			return err
		}

		result = &PDFSessionExportResult{
			SessionID:  req.SessionID,
			Output:     output,
			Mode:       mode.String(),
			Operations: len(e.session.Operations()),
			Size:       int64(len(data)),
			Verified:   verified.Valid,
		}
		log.Printf("session %s: exported %d operations to %s (%s)", req.SessionID, result.Operations, output, mode)

		if req.Rebase {
			flat, err := e.session.Flatten()
			if err != nil {
				return err
			}
			s.rekey(req.SessionID, flat.ID, e)
			e.session = flat
			result.SessionID = flat.ID
			log.Printf("session %s: continues as %s", req.SessionID, flat.ID)
		}
		return nil
	})
	return result, err
}

// withSession runs fn while holding the session's lock
func (s *Service) withSession(id string, fn func(*sessionEntry) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return unknownSession(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// a rebase or close may have retired id while we waited
	s.mu.RLock()
	current := s.sessions[id]
	s.mu.RUnlock()
	if current != e {
		return unknownSession(id)
	}
	return fn(e)
}

func (s *Service) rekey(oldID, newID string, e *sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, oldID)
	s.sessions[newID] = e
}

// write verifies data independently and then writes it to path
func (s *Service) write(path string, data []byte) (*VerifyResult, error) {
	verified, err := s.validator.Verify(data)
	if err != nil {
		return nil, err
	}
	if !verified.Valid {
		return nil, pdferrors.NewPDFErrorf(pdferrors.ErrorTypeInvalidStructure,
			"output failed independent validation: %s", verified.Message).WithFile(path)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return nil, err
	}
	return verified, nil
}

// inputPath confines a path and resolves it against the configured directory
func (s *Service) inputPath(path string) (string, error) {
	normalized, err := s.pathValidator.SanitizePath(path)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	return normalized, nil
}

// outputPath confines a path a result will be written to
func (s *Service) outputPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("output path cannot be empty")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "", fmt.Errorf("output is not a PDF: %s", path)
	}
	normalized, err := s.inputPath(path)
	if err != nil {
		return "", err
	}
	if err := s.pathValidator.ValidateDirectory(filepath.Dir(normalized)); err != nil {
		return "", fmt.Errorf("output directory: %w", err)
	}
	return normalized, nil
}

func (e *sessionEntry) info() *SessionInfo {
	snap := e.session.Snapshot()
	return &SessionInfo{
		SessionID:  e.session.ID,
		Path:       e.path,
		Pages:      e.session.PageCount(),
		Units:      e.session.Units(),
		Created:    e.session.Created,
		Operations: len(snap.Operations),
		UndoDepth:  snap.UndoDepth,
		RedoDepth:  snap.RedoDepth,
	}
}

func unknownSession(id string) error {
	return fmt.Errorf("%w: %s", ErrUnknownSession, id)
}
