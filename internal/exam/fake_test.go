package exam

import (
	"context"
	"fmt"
	"sync"

	"github.com/pavelanni/examgen/internal/model"
)

// fakeBank is an in-memory question bank. It does not implement
// RandomSource, so sampling shuffles with the caller's rng.
type fakeBank struct {
	mu        sync.Mutex
	questions map[int64][]model.Question
	options   map[int64][]model.Option
	calls     int
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		questions: make(map[int64][]model.Question),
		options:   make(map[int64][]model.Option),
	}
}

// addTopic adds n questions to topicID, each with one correct and three
// incorrect options. Question ids start at topicID*1000.
func (b *fakeBank) addTopic(topicID int64, n int) {
	for i := range n {
		id := topicID*1000 + int64(i)
		b.questions[topicID] = append(b.questions[topicID], model.Question{
			ID: id, TopicID: topicID, Text: fmt.Sprintf("t%d q%d", topicID, i),
		})
		b.options[id] = []model.Option{
			{ID: id*10 + 1, QuestionID: id, Text: "right", Correct: true},
			{ID: id*10 + 2, QuestionID: id, Text: "wrong a"},
			{ID: id*10 + 3, QuestionID: id, Text: "wrong b"},
			{ID: id*10 + 4, QuestionID: id, Text: "wrong c"},
		}
	}
}

func (b *fakeBank) TopicQuestions(_ context.Context, topicID int64) ([]model.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return append([]model.Question(nil), b.questions[topicID]...), nil
}

func (b *fakeBank) QuestionOptions(_ context.Context, questionID int64) ([]model.Option, error) {
	return append([]model.Option(nil), b.options[questionID]...), nil
}

// randomBank adds storage-side sampling on top of fakeBank.
type randomBank struct {
	*fakeBank
	randomCalls int
}

func (b *randomBank) RandomQuestions(_ context.Context, topicID int64, n int) ([]model.Question, error) {
	b.randomCalls++
	qs := b.questions[topicID]
	if len(qs) > n {
		qs = qs[:n]
	}
	return append([]model.Question(nil), qs...), nil
}
