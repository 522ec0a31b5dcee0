package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// CreateExam stores one generated variation. Exam rows are never updated.
func (s *Store) CreateExam(ctx context.Context, configID int64, v model.Variant) (int64, error) {
	content, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal variant: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		s.rebind(`INSERT INTO exams (exam_config_id, variation, content_json, created_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		configID, v.Variation, string(content), time.Now().UTC(),
	).Scan(&id)
	return id, err
}

// ListExams returns the exam records of a config in creation order.
func (s *Store) ListExams(ctx context.Context, configID int64) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, exam_config_id, variation, content_json, created_at
		 FROM exams WHERE exam_config_id = ? ORDER BY id`), configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		var content string
		if err := rows.Scan(&e.ID, &e.ExamConfigID, &e.Variation, &content, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(content), &e.Content); err != nil {
			return nil, fmt.Errorf("decode exam %d: %w", e.ID, err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
