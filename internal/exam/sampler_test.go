package exam

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/pavelanni/examgen/internal/model"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestSample(t *testing.T) {
	bank := newFakeBank()
	bank.addTopic(1, 10)
	bank.addTopic(2, 2)
	s := NewSampler(bank)

	tests := []struct {
		name    string
		topicID int64
		n       int
		want    int
	}{
		{"subset", 1, 5, 5},
		{"all", 1, 10, 10},
		{"shortfall", 2, 5, 2},
		{"unknown topic", 3, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := s.Sample(context.Background(), testRand(1), tt.topicID, tt.n)
			if err != nil {
				t.Fatalf("Sample: %v", err)
			}
			if len(qs) != tt.want {
				t.Fatalf("got %d questions, want %d", len(qs), tt.want)
			}
			seen := make(map[int64]bool)
			for _, q := range qs {
				if q.TopicID != tt.topicID {
					t.Errorf("question %d from topic %d, want %d", q.ID, q.TopicID, tt.topicID)
				}
				if seen[q.ID] {
					t.Errorf("question %d sampled twice", q.ID)
				}
				seen[q.ID] = true
			}
		})
	}
}

func TestSampleZeroSkipsStore(t *testing.T) {
	bank := newFakeBank()
	bank.addTopic(1, 3)

	qs, err := NewSampler(bank).Sample(context.Background(), testRand(1), 1, 0)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("got %d questions, want 0", len(qs))
	}
	if bank.calls != 0 {
		t.Errorf("store called %d times, want 0", bank.calls)
	}
}

func TestSampleDeduplicates(t *testing.T) {
	bank := newFakeBank()
	bank.addTopic(1, 3)
	bank.questions[1] = append(bank.questions[1], bank.questions[1][0], bank.questions[1][1])

	qs, err := NewSampler(bank).Sample(context.Background(), testRand(7), 1, 5)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(qs) != 3 {
		t.Errorf("got %d questions, want 3 distinct", len(qs))
	}
	if len(bank.questions[1]) != 5 {
		t.Error("Sample modified the source slice")
	}
}

func TestSampleDeterministic(t *testing.T) {
	bank := newFakeBank()
	bank.addTopic(1, 30)
	s := NewSampler(bank)

	ids := func(qs []model.Question) []int64 {
		out := make([]int64, len(qs))
		for i, q := range qs {
			out[i] = q.ID
		}
		return out
	}
	a, _ := s.Sample(context.Background(), testRand(42), 1, 8)
	b, _ := s.Sample(context.Background(), testRand(42), 1, 8)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("same seed gave different samples: %v vs %v", ids(a), ids(b))
		}
	}
}

func TestSamplePrefersRandomSource(t *testing.T) {
	bank := &randomBank{fakeBank: newFakeBank()}
	bank.addTopic(1, 10)

	qs, err := NewSampler(bank).Sample(context.Background(), testRand(1), 1, 4)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(qs) != 4 {
		t.Errorf("got %d questions, want 4", len(qs))
	}
	if bank.randomCalls != 1 || bank.calls != 0 {
		t.Errorf("random calls = %d, list calls = %d; want 1 and 0", bank.randomCalls, bank.calls)
	}
}

func TestSampleReproducibleSkipsRandomSource(t *testing.T) {
	bank := &randomBank{fakeBank: newFakeBank()}
	bank.addTopic(1, 10)
	s := NewSampler(bank)
	s.Reproducible = true

	a, err := s.Sample(context.Background(), testRand(9), 1, 4)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	b, err := s.Sample(context.Background(), testRand(9), 1, 4)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if bank.randomCalls != 0 || bank.calls != 2 {
		t.Errorf("random calls = %d, list calls = %d; want 0 and 2", bank.randomCalls, bank.calls)
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("same seed gave different samples at %d: %d vs %d", i, a[i].ID, b[i].ID)
		}
	}
}
