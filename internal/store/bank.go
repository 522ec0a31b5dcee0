package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/examgen/internal/model"
)

// CreateSubject inserts a subject, or returns the id of the existing one with
// the same name.
func (s *Store) CreateSubject(ctx context.Context, name string) (int64, error) {
	return upsertSubject(ctx, s, s.db, name)
}

// CreateTopic inserts a topic under a subject, or returns the existing id.
func (s *Store) CreateTopic(ctx context.Context, subjectID int64, name string) (int64, error) {
	return upsertTopic(ctx, s, s.db, subjectID, name)
}

// InsertQuestion stores a question with its options in one transaction.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question, options []model.Option) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := insertQuestion(ctx, s, tx, q, options)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// SubjectName returns the display name of a subject.
func (s *Store) SubjectName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT name FROM subjects WHERE id = ?`), id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("subject %d: %w", id, ErrNotFound)
	}
	return name, err
}

// GetTopic returns a topic by ID.
func (s *Store) GetTopic(ctx context.Context, id int64) (model.Topic, error) {
	var t model.Topic
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, subject_id, name FROM topics WHERE id = ?`), id,
	).Scan(&t.ID, &t.SubjectID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTopics returns the topics of a subject ordered by name.
func (s *Store) ListTopics(ctx context.Context, subjectID int64) ([]model.Topic, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, subject_id, name FROM topics WHERE subject_id = ? ORDER BY name`), subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.Name); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// CountQuestions returns the number of questions in a topic.
func (s *Store) CountQuestions(ctx context.Context, topicID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM questions WHERE topic_id = ?`), topicID,
	).Scan(&count)
	return count, err
}

// QuestionCount returns the number of questions in the bank.
func (s *Store) QuestionCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// RandomQuestions returns up to n distinct questions of a topic in random
// order. Ordering and limiting happen in the database.
func (s *Store) RandomQuestions(ctx context.Context, topicID int64, n int) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, topic_id, text FROM questions WHERE topic_id = ? ORDER BY RANDOM() LIMIT ?`),
		topicID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// TopicQuestions returns every question of a topic ordered by id.
func (s *Store) TopicQuestions(ctx context.Context, topicID int64) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, topic_id, text FROM questions WHERE topic_id = ? ORDER BY id`), topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Text); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionOptions returns all options of a question ordered by id.
func (s *Store) QuestionOptions(ctx context.Context, questionID int64) ([]model.Option, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, question_id, text, is_correct FROM question_options WHERE question_id = ? ORDER BY id`),
		questionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var options []model.Option
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.Correct); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSubject(ctx context.Context, s *Store, q queryer, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, s.rebind(`SELECT id FROM subjects WHERE name = ?`), name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = q.QueryRowContext(ctx, s.rebind(`INSERT INTO subjects (name) VALUES (?) RETURNING id`), name).Scan(&id)
	return id, err
}

func upsertTopic(ctx context.Context, s *Store, q queryer, subjectID int64, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT id FROM topics WHERE subject_id = ? AND name = ?`), subjectID, name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	err = q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO topics (subject_id, name) VALUES (?, ?) RETURNING id`), subjectID, name,
	).Scan(&id)
	return id, err
}

func insertQuestion(ctx context.Context, s *Store, q queryer, question model.Question, options []model.Option) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO questions (topic_id, text) VALUES (?, ?) RETURNING id`),
		question.TopicID, question.Text,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	for _, o := range options {
		_, err := q.ExecContext(ctx,
			s.rebind(`INSERT INTO question_options (question_id, text, is_correct) VALUES (?, ?, ?)`),
			id, o.Text, o.Correct,
		)
		if err != nil {
			return 0, fmt.Errorf("insert option: %w", err)
		}
	}
	return id, nil
}
