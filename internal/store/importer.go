package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/examgen/internal/model"
)

// ImportBank loads a subject's topics and questions in one transaction and
// returns the number of questions inserted.
func (s *Store) ImportBank(ctx context.Context, bank model.BankImport) (int, error) {
	subject := strings.TrimSpace(bank.Subject)
	if subject == "" {
		return 0, fmt.Errorf("bank import: subject name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	subjectID, err := upsertSubject(ctx, s, tx, subject)
	if err != nil {
		return 0, fmt.Errorf("subject %q: %w", subject, err)
	}

	count := 0
	for _, ti := range bank.Topics {
		name := strings.TrimSpace(ti.Name)
		if name == "" {
			name = "Default Topic"
		}
		topicID, err := upsertTopic(ctx, s, tx, subjectID, name)
		if err != nil {
			return 0, fmt.Errorf("topic %q: %w", name, err)
		}
		for _, qi := range ti.Questions {
			if strings.TrimSpace(qi.Text) == "" {
				slog.Warn("skipping question without text", "topic", name)
				continue
			}
			options := make([]model.Option, 0, len(qi.Options))
			for _, oi := range qi.Options {
				options = append(options, model.Option{Text: oi.Text, Correct: oi.Correct})
			}
			if _, err := insertQuestion(ctx, s, tx, model.Question{TopicID: topicID, Text: qi.Text}, options); err != nil {
				return 0, fmt.Errorf("topic %q: %w", name, err)
			}
			count++
		}
	}

	return count, tx.Commit()
}
