package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/pavelanni/examgen/internal/model"
)

func TestEntryName(t *testing.T) {
	tests := []struct {
		doc  model.Document
		want string
	}{
		{model.Document{Kind: model.KindExam, Variation: 1}, "exams/exam_var_1.pdf"},
		{model.Document{Kind: model.KindAnswerKey, Variation: 1}, "answer_keys/answer_key_var_1.pdf"},
		{model.Document{Kind: model.KindExam, Variation: 12}, "exams/exam_var_12.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := EntryName(&tt.doc); got != tt.want {
				t.Errorf("EntryName = %q, want %q", got, tt.want)
			}
		})
	}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(b)
	}
	return files
}

func TestWriter(t *testing.T) {
	w := NewWriter()
	docs := []*model.Document{
		{Kind: model.KindExam, Variation: 1, Data: []byte("exam 1")},
		{Kind: model.KindAnswerKey, Variation: 1, Data: []byte("key 1")},
		{Kind: model.KindExam, Variation: 2, Data: []byte("exam 2")},
		{Kind: model.KindAnswerKey, Variation: 2, Data: []byte("key 2")},
	}
	for _, d := range docs {
		if err := w.Add(d); err != nil {
			t.Fatalf("Add %s: %v", EntryName(d), err)
		}
	}
	if w.Len() != 4 {
		t.Errorf("Len = %d, want 4", w.Len())
	}

	data, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	files := readArchive(t, data)
	if len(files) != 4 {
		t.Fatalf("archive has %d entries, want 4", len(files))
	}
	for _, d := range docs {
		if got := files[EntryName(d)]; got != string(d.Data) {
			t.Errorf("%s = %q, want %q", EntryName(d), got, d.Data)
		}
	}
}

func TestWriterDuplicate(t *testing.T) {
	w := NewWriter()
	doc := &model.Document{Kind: model.KindExam, Variation: 1, Data: []byte("x")}
	if err := w.Add(doc); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Add(doc); err == nil {
		t.Error("second Add of the same entry succeeded")
	}
}

func TestWriterClosed(t *testing.T) {
	w := NewWriter()
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := w.Add(&model.Document{Kind: model.KindExam, Variation: 1})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Add after Close = %v, want ErrClosed", err)
	}
	if _, err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestWriterConcurrent(t *testing.T) {
	w := NewWriter()
	var wg sync.WaitGroup
	for v := 1; v <= 10; v++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, kind := range []model.DocumentKind{model.KindExam, model.KindAnswerKey} {
				if err := w.Add(&model.Document{Kind: kind, Variation: v, Data: []byte{byte(v)}}); err != nil {
					t.Errorf("Add: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	data, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := len(readArchive(t, data)); got != 20 {
		t.Errorf("archive has %d entries, want 20", got)
	}
}
