package render

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		fmt.Fprintln(os.Stderr, "i18n init:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func testVariant(n int) model.Variant {
	v := model.Variant{Variation: 2}
	for i := range n {
		opts := []string{"w1", "w2", "w3", "w4"}
		opts[i%4] = "right"
		v.Questions = append(v.Questions, model.AssembledQuestion{
			QuestionID: int64(i + 1),
			TopicID:    1,
			Text:       fmt.Sprintf("Question %d", i+1),
			Points:     20.0 / float64(n),
			Options:    opts,
			Correct:    i % 4,
		})
	}
	return v
}

func TestFormatPoints(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{10, "10"},
		{2.5, "2.5"},
		{20.0 / 3, "6.67"},
		{1.0 / 3, "0.33"},
		{0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatPoints(tt.in); got != tt.want {
				t.Errorf("FormatPoints(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSheetsShareLayout(t *testing.T) {
	ctx := context.Background()
	v := testVariant(20)
	meta := Meta{Subject: "Physics", Fraction: 25, Variation: 2}

	exam := buildSheet(ctx, v, meta, model.KindExam)
	key := buildSheet(ctx, v, meta, model.KindAnswerKey)

	if exam.Tag == key.Tag {
		t.Errorf("exam and key share tag %q", exam.Tag)
	}
	if !reflect.DeepEqual(exam.Questions, key.Questions) {
		t.Error("exam and key questions differ")
	}
	if len(exam.Blocks) != 2 || len(key.Blocks) != 2 {
		t.Fatalf("blocks = %d/%d, want 2 (15 + 5 columns)", len(exam.Blocks), len(key.Blocks))
	}
	if got := len(key.Blocks[0].Numbers); got != BlockColumns {
		t.Errorf("first block has %d columns, want %d", got, BlockColumns)
	}
	if got := len(key.Blocks[1].Numbers); got != 5 {
		t.Errorf("second block has %d columns, want 5", got)
	}
	for b := range exam.Blocks {
		if exam.Blocks[b].ColumnFormat != key.Blocks[b].ColumnFormat {
			t.Errorf("block %d column format differs", b)
		}
		if !reflect.DeepEqual(exam.Blocks[b].Numbers, key.Blocks[b].Numbers) {
			t.Errorf("block %d numbers differ", b)
		}
	}
}

func TestKeyMarksMatchVariant(t *testing.T) {
	v := testVariant(17)
	v.Questions[3].Correct = model.NoCorrect

	key := buildSheet(context.Background(), v, Meta{Variation: 2}, model.KindAnswerKey)
	for b, block := range key.Blocks {
		for c := range block.Numbers {
			n := b*BlockColumns + c
			q := v.Questions[n]
			for row, r := range block.Rows {
				marked := r.Cells[c] == answerMark
				want := q.HasCorrect() && q.Correct == row
				if marked != want {
					t.Errorf("question %d row %s: marked = %v, want %v", n+1, r.Letter, marked, want)
				}
			}
		}
	}
}

func TestRender(t *testing.T) {
	v := testVariant(6)
	v.Questions[1].Correct = model.NoCorrect

	bodies, err := New().Render(context.Background(), v, Meta{Subject: "Math", Fraction: 25, Variation: 2})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if got := strings.Count(bodies.Exam, answerMark); got != 0 {
		t.Errorf("exam has %d answer marks, want 0", got)
	}
	if got := strings.Count(bodies.Key, answerMark); got != 5 {
		t.Errorf("key has %d answer marks, want 5", got)
	}

	for _, want := range []string{
		`\examheader{Exam}{Variation 2}`,
		`\studentfields{Name}{Number}`,
		`Penalty for an incorrect answer: 25\% of the question value.`,
		`\examquestion{1}{3.33 pts}{Question 1}`,
		`\begin{choices}`,
		`\item right`,
		`\section*{Answer sheet}`,
		`\begin{tabular}{|c|G|G|G|G|G|G|}`,
		` & 1 & 2 & 3 & 4 & 5 & 6 \\ \hline`,
	} {
		if !strings.Contains(bodies.Exam, want) {
			t.Errorf("exam body missing %q", want)
		}
	}
	if !strings.Contains(bodies.Key, `\examheader{Answer Key}{Variation 2}`) {
		t.Error("key body missing answer key header")
	}

	// Apart from the tag and the marks the bodies are identical.
	stripped := strings.ReplaceAll(bodies.Key, answerMark, "")
	stripped = strings.Replace(stripped, "Answer Key", "Exam", 1)
	if stripped != bodies.Exam {
		t.Errorf("key differs from exam beyond tag and marks:\nexam:\n%s\nkey:\n%s", bodies.Exam, bodies.Key)
	}
}

func TestRenderNoPenalty(t *testing.T) {
	bodies, err := New().Render(context.Background(), testVariant(1), Meta{Variation: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(bodies.Exam, "Incorrect answers are not penalized.") {
		t.Error("exam body missing no-penalty line")
	}
	if !strings.Contains(bodies.Exam, "1 question") {
		t.Error("exam body missing singular question count")
	}
}

func TestRenderEscapesBankText(t *testing.T) {
	v := model.Variant{Variation: 1, Questions: []model.AssembledQuestion{{
		QuestionID: 1,
		Text:       "What is 50% of $10 & #1?",
		Points:     20,
		Options:    []string{"a_b", "{c}", "d", "e", "f"},
		Correct:    0,
	}}}
	bodies, err := New().Render(context.Background(), v, Meta{Variation: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{`What is 50\% of \$10 \& \#1?`, `\item a\_b`, `\item \{c\}`} {
		if !strings.Contains(bodies.Exam, want) {
			t.Errorf("exam body missing %q", want)
		}
	}
	if got := strings.Count(bodies.Exam, `\item `); got != len(Letters) {
		t.Errorf("exam shows %d choices, want %d", got, len(Letters))
	}
}

func TestRenderLocalized(t *testing.T) {
	ctx := i18n.WithLang(context.Background(), "pt")
	bodies, err := New().Render(ctx, testVariant(2), Meta{Fraction: 50, Variation: 3})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		`\examheader{Exame}{Variante 3}`,
		`\section*{Folha de respostas}`,
		`50\% da cotação`,
		`{10 val.}`,
	} {
		if !strings.Contains(bodies.Exam, want) {
			t.Errorf("exam body missing %q", want)
		}
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Render(ctx, testVariant(1), Meta{}); err == nil {
		t.Error("Render with canceled context succeeded")
	}
}
