package exam

import (
	"math"
	"testing"

	"github.com/pavelanni/examgen/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		topics []model.TopicConfig
		want   map[int64]float64
	}{
		{
			name:   "single topic",
			topics: []model.TopicConfig{{TopicID: 1, NumQuestions: 5, RelativeWeight: 1}},
			want:   map[int64]float64{1: 4},
		},
		{
			name: "weighted topics",
			topics: []model.TopicConfig{
				{TopicID: 1, NumQuestions: 2, RelativeWeight: 1},
				{TopicID: 2, NumQuestions: 3, RelativeWeight: 2},
			},
			want: map[int64]float64{1: 2.5, 2: 5},
		},
		{
			name: "zero weight topic",
			topics: []model.TopicConfig{
				{TopicID: 1, NumQuestions: 4, RelativeWeight: 1},
				{TopicID: 2, NumQuestions: 3, RelativeWeight: 0},
			},
			want: map[int64]float64{1: 5, 2: 0},
		},
		{
			name: "all weights zero",
			topics: []model.TopicConfig{
				{TopicID: 1, NumQuestions: 4},
				{TopicID: 2, NumQuestions: 3},
			},
			want: map[int64]float64{1: 1, 2: 1},
		},
		{
			name:   "no questions",
			topics: []model.TopicConfig{{TopicID: 1, RelativeWeight: 3}},
			want:   map[int64]float64{1: 1},
		},
		{
			name: "empty",
			want: map[int64]float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.topics)
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize returned %d topics, want %d", len(got), len(tt.want))
			}
			for id, want := range tt.want {
				if math.Abs(got[id]-want) > 1e-9 {
					t.Errorf("topic %d = %v, want %v", id, got[id], want)
				}
			}
		})
	}
}

func TestNormalizeSumsToScale(t *testing.T) {
	cases := [][]model.TopicConfig{
		{{TopicID: 1, NumQuestions: 7, RelativeWeight: 1}},
		{{TopicID: 1, NumQuestions: 3, RelativeWeight: 0.5}, {TopicID: 2, NumQuestions: 7, RelativeWeight: 1.3}},
		{{TopicID: 1, NumQuestions: 1, RelativeWeight: 9}, {TopicID: 2, NumQuestions: 11, RelativeWeight: 1}, {TopicID: 3, NumQuestions: 6, RelativeWeight: 2.25}},
	}
	for i, topics := range cases {
		points := Normalize(topics)
		var sum float64
		for _, tc := range topics {
			sum += points[tc.TopicID] * float64(tc.NumQuestions)
		}
		if math.Abs(sum-TotalScale) > 1e-9 {
			t.Errorf("case %d: exam sums to %v, want %v", i, sum, TotalScale)
		}
	}
}
