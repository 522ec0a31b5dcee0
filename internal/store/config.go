package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/examgen/internal/model"
)

// CreateExamConfig persists a config and all of its topic rows together.
func (s *Store) CreateExamConfig(ctx context.Context, cfg model.ExamConfig) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		s.rebind(`INSERT INTO exam_configs (subject_id, fraction, created_at) VALUES (?, ?, ?) RETURNING id`),
		cfg.SubjectID, cfg.Fraction, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert exam config: %w", err)
	}

	for _, tc := range cfg.Topics {
		_, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO topic_configs (exam_config_id, topic_id, num_questions, relative_weight)
			 VALUES (?, ?, ?, ?)`),
			id, tc.TopicID, tc.NumQuestions, tc.RelativeWeight,
		)
		if err != nil {
			return 0, fmt.Errorf("insert topic config for topic %d: %w", tc.TopicID, err)
		}
	}

	return id, tx.Commit()
}

// GetExamConfig returns a config with its topic rows.
func (s *Store) GetExamConfig(ctx context.Context, id int64) (model.ExamConfig, error) {
	var cfg model.ExamConfig
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, subject_id, fraction, created_at FROM exam_configs WHERE id = ?`), id,
	).Scan(&cfg.ID, &cfg.SubjectID, &cfg.Fraction, &cfg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, fmt.Errorf("exam config %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return cfg, err
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, exam_config_id, topic_id, num_questions, relative_weight
		 FROM topic_configs WHERE exam_config_id = ? ORDER BY id`), id,
	)
	if err != nil {
		return cfg, err
	}
	defer rows.Close()
	for rows.Next() {
		var tc model.TopicConfig
		if err := rows.Scan(&tc.ID, &tc.ExamConfigID, &tc.TopicID, &tc.NumQuestions, &tc.RelativeWeight); err != nil {
			return cfg, err
		}
		cfg.Topics = append(cfg.Topics, tc)
	}
	return cfg, rows.Err()
}

// DeleteExamConfig removes a config; its topic rows and exams cascade.
func (s *Store) DeleteExamConfig(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM exam_configs WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("exam config %d: %w", id, ErrNotFound)
	}
	return nil
}

// ConfigTopics returns the topic rows of a config joined with topic names.
func (s *Store) ConfigTopics(ctx context.Context, configID int64) ([]model.ConfigTopicView, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT tc.topic_id, t.name, tc.num_questions, tc.relative_weight
		 FROM topic_configs tc
		 JOIN topics t ON t.id = tc.topic_id
		 WHERE tc.exam_config_id = ?
		 ORDER BY tc.id`), configID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []model.ConfigTopicView
	for rows.Next() {
		var v model.ConfigTopicView
		if err := rows.Scan(&v.TopicID, &v.TopicName, &v.NumQuestions, &v.RelativeWeight); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ConfigView builds the read projection of a config.
func (s *Store) ConfigView(ctx context.Context, configID int64) (*model.ExamConfigView, error) {
	cfg, err := s.GetExamConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	subject, err := s.SubjectName(ctx, cfg.SubjectID)
	if err != nil {
		return nil, err
	}
	topics, err := s.ConfigTopics(ctx, configID)
	if err != nil {
		return nil, err
	}
	return &model.ExamConfigView{
		ID:          cfg.ID,
		SubjectID:   cfg.SubjectID,
		SubjectName: subject,
		Fraction:    cfg.Fraction,
		CreatedAt:   cfg.CreatedAt,
		Topics:      topics,
	}, nil
}
