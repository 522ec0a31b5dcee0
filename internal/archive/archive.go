package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// ErrClosed is returned when adding to a closed Writer.
var ErrClosed = errors.New("archive already closed")

// Writer collects compiled documents into an in-memory zip archive.
// It is safe for concurrent use; entries are appended in call order.
type Writer struct {
	mu      sync.Mutex
	buf     *bytes.Buffer
	zw      *zip.Writer
	names   map[string]bool
	closed  bool
	modTime time.Time
}

// NewWriter creates an empty archive.
func NewWriter() *Writer {
	buf := new(bytes.Buffer)
	return &Writer{
		buf:     buf,
		zw:      zip.NewWriter(buf),
		names:   make(map[string]bool),
		modTime: time.Now(),
	}
}

// EntryName returns the archive path of a document. Exams and keys share
// the variation number so they can be paired by index alone.
func EntryName(doc *model.Document) string {
	switch doc.Kind {
	case model.KindAnswerKey:
		return fmt.Sprintf("answer_keys/answer_key_var_%d.pdf", doc.Variation)
	default:
		return fmt.Sprintf("exams/exam_var_%d.pdf", doc.Variation)
	}
}

// Add appends doc under its EntryName.
func (w *Writer) Add(doc *model.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	name := EntryName(doc)
	if w.names[name] {
		return fmt.Errorf("duplicate archive entry %s", name)
	}

	f, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modTime,
	})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := f.Write(doc.Data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	w.names[name] = true
	return nil
}

// Len returns the number of entries written so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.names)
}

// Close finalizes the archive and returns its bytes.
func (w *Writer) Close() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return w.buf.Bytes(), nil
}
