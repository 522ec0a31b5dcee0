package exam

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/pavelanni/examgen/internal/model"
)

// QuestionSource lists the questions of a topic.
type QuestionSource interface {
	TopicQuestions(ctx context.Context, topicID int64) ([]model.Question, error)
}

// RandomSource draws up to n distinct questions of a topic in random order
// inside the storage layer. Sources implementing it are preferred by Sampler.
type RandomSource interface {
	RandomQuestions(ctx context.Context, topicID int64, n int) ([]model.Question, error)
}

// Sampler draws random question subsets per topic without replacement.
// Calls are independent: nothing is excluded across calls.
type Sampler struct {
	src QuestionSource

	// Reproducible makes every draw depend only on the caller's rng. The
	// storage-side RandomSource is bypassed.
	Reproducible bool
}

// NewSampler creates a Sampler over src.
func NewSampler(src QuestionSource) *Sampler {
	return &Sampler{src: src}
}

// Sample returns min(n, available) distinct questions of the topic. A
// shortfall is logged and is not an error.
func (s *Sampler) Sample(ctx context.Context, rng *rand.Rand, topicID int64, n int) ([]model.Question, error) {
	if n <= 0 {
		return nil, nil
	}

	var picked []model.Question
	if rs, ok := s.src.(RandomSource); ok && !s.Reproducible {
		qs, err := rs.RandomQuestions(ctx, topicID, n)
		if err != nil {
			return nil, err
		}
		picked = dedupe(qs)
	} else {
		qs, err := s.src.TopicQuestions(ctx, topicID)
		if err != nil {
			return nil, err
		}
		picked = dedupe(qs)
		rng.Shuffle(len(picked), func(i, j int) {
			picked[i], picked[j] = picked[j], picked[i]
		})
	}

	if len(picked) > n {
		picked = picked[:n]
	}
	if len(picked) < n {
		slog.Warn("topic has fewer questions than requested",
			"topic_id", topicID, "requested", n, "available", len(picked))
	}
	return picked, nil
}

func dedupe(qs []model.Question) []model.Question {
	seen := make(map[int64]bool, len(qs))
	out := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out
}
