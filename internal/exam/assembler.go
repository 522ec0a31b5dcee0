package exam

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/pavelanni/examgen/internal/model"
)

// MaxOptions is the number of choices shown per question.
const MaxOptions = 4

// OptionSource loads the options of a question.
type OptionSource interface {
	QuestionOptions(ctx context.Context, questionID int64) ([]model.Option, error)
}

// Assembler builds one exam variation: it samples every topic, shuffles the
// combined question list and scrambles each question's options.
type Assembler struct {
	sampler *Sampler
	options OptionSource
}

// NewAssembler creates an Assembler.
func NewAssembler(sampler *Sampler, options OptionSource) *Assembler {
	return &Assembler{sampler: sampler, options: options}
}

// Assemble produces a self-contained variant. All randomness is drawn from
// rng, which must not be shared with other goroutines.
func (a *Assembler) Assemble(ctx context.Context, rng *rand.Rand, variation int, topics []model.TopicConfig, points map[int64]float64) (model.Variant, error) {
	var pool []model.Question
	for _, tc := range topics {
		qs, err := a.sampler.Sample(ctx, rng, tc.TopicID, tc.NumQuestions)
		if err != nil {
			return model.Variant{}, fmt.Errorf("sample topic %d: %w", tc.TopicID, err)
		}
		pool = append(pool, qs...)
	}

	// Global order is not grouped by topic.
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	v := model.Variant{
		Variation: variation,
		Questions: make([]model.AssembledQuestion, 0, len(pool)),
	}
	for _, q := range pool {
		opts, err := a.options.QuestionOptions(ctx, q.ID)
		if err != nil {
			return model.Variant{}, fmt.Errorf("load options of question %d: %w", q.ID, err)
		}
		qrng := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
		texts, correct := arrangeOptions(qrng, q.ID, opts)
		v.Questions = append(v.Questions, model.AssembledQuestion{
			QuestionID: q.ID,
			TopicID:    q.TopicID,
			Text:       q.Text,
			Points:     points[q.TopicID],
			Options:    texts,
			Correct:    correct,
		})
	}
	return v, nil
}

// arrangeOptions picks at most one correct option (the lowest id) and fills
// the remaining slots with random incorrect ones, then shuffles. It returns
// the option texts and the position of the correct one, or model.NoCorrect.
func arrangeOptions(rng *rand.Rand, questionID int64, opts []model.Option) ([]string, int) {
	sorted := make([]model.Option, len(opts))
	copy(sorted, opts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var correct, incorrect []model.Option
	for _, o := range sorted {
		if o.Correct {
			correct = append(correct, o)
		} else {
			incorrect = append(incorrect, o)
		}
	}

	switch {
	case len(correct) == 0:
		slog.Warn("question has no correct option", "question_id", questionID)
	case len(correct) > 1:
		slog.Warn("question has several correct options, using the first",
			"question_id", questionID, "correct", len(correct))
	}

	var chosen []model.Option
	if len(correct) > 0 {
		chosen = append(chosen, correct[0])
	}
	slots := min(MaxOptions-len(chosen), len(incorrect))
	for _, i := range rng.Perm(len(incorrect))[:slots] {
		chosen = append(chosen, incorrect[i])
	}

	rng.Shuffle(len(chosen), func(i, j int) {
		chosen[i], chosen[j] = chosen[j], chosen[i]
	})

	texts := make([]string, len(chosen))
	pos := model.NoCorrect
	for i, o := range chosen {
		texts[i] = o.Text
		if len(correct) > 0 && o.ID == correct[0].ID && o.Correct {
			pos = i
		}
	}
	return texts, pos
}
