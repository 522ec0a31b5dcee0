package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/latex"
	"github.com/pavelanni/examgen/internal/model"
)

//go:embed templates/body.tex
var templateFS embed.FS

const (
	// BlockColumns is the number of questions per answer grid block.
	BlockColumns = 15

	answerMark = `\answermark`
)

// Letters label the answer grid rows and the choices in order.
var Letters = []string{"A", "B", "C", "D"}

var bodyTemplate = template.Must(
	template.New("body.tex").
		Delims("<<", ">>").
		Funcs(template.FuncMap{"cells": func(s []string) string { return strings.Join(s, " & ") }}).
		ParseFS(templateFS, "templates/body.tex"),
)

// Meta carries the per-document values that are not part of the variant.
type Meta struct {
	Subject   string
	Fraction  int
	Variation int
}

// Bodies holds the two LaTeX bodies of one variation.
type Bodies struct {
	Exam string
	Key  string
}

// Renderer turns an assembled variant into LaTeX bodies.
type Renderer struct{}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render produces the exam and answer key bodies. Both share one layout;
// only the title tag and the grid marks differ. Labels are localized with
// the localizer carried by ctx.
func (r *Renderer) Render(ctx context.Context, v model.Variant, meta Meta) (Bodies, error) {
	if err := ctx.Err(); err != nil {
		return Bodies{}, err
	}

	exam, err := execute(buildSheet(ctx, v, meta, model.KindExam))
	if err != nil {
		return Bodies{}, fmt.Errorf("render exam for variation %d: %w", v.Variation, err)
	}
	key, err := execute(buildSheet(ctx, v, meta, model.KindAnswerKey))
	if err != nil {
		return Bodies{}, fmt.Errorf("render answer key for variation %d: %w", v.Variation, err)
	}
	return Bodies{Exam: exam, Key: key}, nil
}

type sheet struct {
	Tag              string
	VariationLabel   string
	NameLabel        string
	NumberLabel      string
	Penalty          string
	Summary          string
	AnswerSheetLabel string
	Questions        []questionView
	Blocks           []gridBlock
}

type questionView struct {
	Number  int
	Points  string
	Text    string
	Options []string
}

type gridBlock struct {
	ColumnFormat string
	Numbers      []string
	Rows         []gridRow
}

type gridRow struct {
	Letter string
	Cells  []string
}

// buildSheet prepares the template data. Every string in it is already
// escaped for LaTeX.
func buildSheet(ctx context.Context, v model.Variant, meta Meta, kind model.DocumentKind) sheet {
	tag := i18n.T(ctx, "ExamTitle")
	if kind == model.KindAnswerKey {
		tag = i18n.T(ctx, "AnswerKeyTitle")
	}
	penalty := i18n.T(ctx, "NoPenalty")
	if meta.Fraction > 0 {
		penalty = i18n.Td(ctx, "PenaltyNotice", map[string]any{"Fraction": meta.Fraction})
	}

	s := sheet{
		Tag:              latex.Escape(tag),
		VariationLabel:   latex.Escape(i18n.Td(ctx, "VariationN", map[string]any{"N": meta.Variation})),
		NameLabel:        latex.Escape(i18n.T(ctx, "NameField")),
		NumberLabel:      latex.Escape(i18n.T(ctx, "NumberField")),
		Penalty:          latex.Escape(penalty),
		Summary:          latex.Escape(i18n.Tp(ctx, "QuestionCount", len(v.Questions))),
		AnswerSheetLabel: latex.Escape(i18n.T(ctx, "AnswerSheet")),
		Questions:        make([]questionView, 0, len(v.Questions)),
	}

	for i, q := range v.Questions {
		opts := make([]string, 0, len(q.Options))
		for j, o := range q.Options {
			if j >= len(Letters) {
				break
			}
			opts = append(opts, latex.Escape(o))
		}
		s.Questions = append(s.Questions, questionView{
			Number:  i + 1,
			Points:  latex.Escape(i18n.Td(ctx, "PointsShort", map[string]any{"Points": FormatPoints(q.Points)})),
			Text:    latex.Escape(q.Text),
			Options: opts,
		})
	}

	for start := 0; start < len(v.Questions); start += BlockColumns {
		end := min(start+BlockColumns, len(v.Questions))
		b := gridBlock{ColumnFormat: strings.Repeat("G|", end-start)}
		for n := start; n < end; n++ {
			b.Numbers = append(b.Numbers, strconv.Itoa(n+1))
		}
		for row, letter := range Letters {
			r := gridRow{Letter: letter, Cells: make([]string, end-start)}
			if kind == model.KindAnswerKey {
				for n := start; n < end; n++ {
					q := v.Questions[n]
					if q.HasCorrect() && q.Correct == row {
						r.Cells[n-start] = answerMark
					}
				}
			}
			b.Rows = append(b.Rows, r)
		}
		s.Blocks = append(s.Blocks, b)
	}
	return s
}

func execute(s sheet) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatPoints prints a point value with at most two decimals and no
// trailing zeros.
func FormatPoints(p float64) string {
	s := strconv.FormatFloat(p, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
