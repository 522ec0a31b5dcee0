package model

import "time"

// Subject is a course whose question bank exams are drawn from.
type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Topic is a grading-relevant subdivision of a subject's question bank.
type Topic struct {
	ID        int64  `json:"id"`
	SubjectID int64  `json:"subject_id"`
	Name      string `json:"name"`
}

// Question is a topic-scoped question from the bank.
type Question struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topic_id"`
	Text    string `json:"text"`
}

// Option is one selectable choice for a question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct"`
}

// ExamConfig is the durable input of a generation request.
type ExamConfig struct {
	ID        int64         `json:"id"`
	SubjectID int64         `json:"subject_id"`
	Fraction  int           `json:"fraction"` // penalty percentage for wrong answers, 0-100
	CreatedAt time.Time     `json:"created_at"`
	Topics    []TopicConfig `json:"topics"`
}

// TopicConfig is one topic included in an ExamConfig.
type TopicConfig struct {
	ID             int64   `json:"id"`
	ExamConfigID   int64   `json:"exam_config_id"`
	TopicID        int64   `json:"topic_id"`
	NumQuestions   int     `json:"num_questions"`
	RelativeWeight float64 `json:"relative_weight"`
}

// NoCorrect marks an assembled question without a correct option.
const NoCorrect = -1

// AssembledQuestion is a question as it appears in one variation.
type AssembledQuestion struct {
	QuestionID int64    `json:"question_id"`
	TopicID    int64    `json:"topic_id"`
	Text       string   `json:"text"`
	Points     float64  `json:"points"`
	Options    []string `json:"options"`
	Correct    int      `json:"correct"` // index into Options, or NoCorrect
}

// HasCorrect reports whether the question has a marked correct option.
func (q AssembledQuestion) HasCorrect() bool {
	return q.Correct >= 0 && q.Correct < len(q.Options)
}

// Variant is one fully assembled exam variation.
type Variant struct {
	Variation int                 `json:"variation"`
	Questions []AssembledQuestion `json:"questions"`
}

// AnswerKey maps question position (0-based) to the correct option index.
// Questions without a correct option are absent.
func (v Variant) AnswerKey() map[int]int {
	key := make(map[int]int, len(v.Questions))
	for i, q := range v.Questions {
		if q.HasCorrect() {
			key[i] = q.Correct
		}
	}
	return key
}

// TotalPoints sums the point values of all questions.
func (v Variant) TotalPoints() float64 {
	var total float64
	for _, q := range v.Questions {
		total += q.Points
	}
	return total
}

// Exam is the persisted record of one generated variation.
type Exam struct {
	ID           int64     `json:"id"`
	ExamConfigID int64     `json:"exam_config_id"`
	Variation    int       `json:"variation"`
	Content      Variant   `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConfigTopicView is the read projection of a topic configuration.
type ConfigTopicView struct {
	TopicID        int64   `json:"topic_id"`
	TopicName      string  `json:"topic_name"`
	NumQuestions   int     `json:"num_questions"`
	RelativeWeight float64 `json:"relative_weight"`
}

// ExamConfigView combines a config with its named topic rows.
type ExamConfigView struct {
	ID          int64             `json:"id"`
	SubjectID   int64             `json:"subject_id"`
	SubjectName string            `json:"subject_name"`
	Fraction    int               `json:"fraction"`
	CreatedAt   time.Time         `json:"created_at"`
	Topics      []ConfigTopicView `json:"topics"`
}

// DocumentKind distinguishes the blank exam from its answer key.
type DocumentKind string

const (
	KindExam      DocumentKind = "exam"
	KindAnswerKey DocumentKind = "answer_key"
)

// Document is a compiled document held only until it is archived.
type Document struct {
	Kind      DocumentKind
	Variation int
	Data      []byte
}
