package model

// GenerationRequest is the caller-facing input of an exam generation run.
type GenerationRequest struct {
	SubjectID     int64          `json:"subject_id" validate:"required,gt=0"`
	Fraction      int            `json:"fraction" validate:"gte=0,lte=100"`
	Topics        []TopicRequest `json:"topics" validate:"required,min=1,dive"`
	NumVariations int            `json:"num_variations" validate:"gte=1,lte=100"`
}

// TopicRequest is one topic line of a GenerationRequest.
type TopicRequest struct {
	TopicID        int64   `json:"topic_id" validate:"required,gt=0"`
	NumQuestions   int     `json:"num_questions" validate:"gte=0"`
	RelativeWeight float64 `json:"relative_weight" validate:"gte=0"`
}

// ExamConfig converts the request into the config that gets persisted.
func (r GenerationRequest) ExamConfig() ExamConfig {
	cfg := ExamConfig{
		SubjectID: r.SubjectID,
		Fraction:  r.Fraction,
		Topics:    make([]TopicConfig, 0, len(r.Topics)),
	}
	for _, t := range r.Topics {
		cfg.Topics = append(cfg.Topics, TopicConfig{
			TopicID:        t.TopicID,
			NumQuestions:   t.NumQuestions,
			RelativeWeight: t.RelativeWeight,
		})
	}
	return cfg
}

// BankImport is the JSON layout accepted by the question bank importer.
type BankImport struct {
	Subject string        `json:"subject"`
	Topics  []TopicImport `json:"topics"`
}

// TopicImport holds the questions of one topic in a BankImport.
type TopicImport struct {
	Name      string           `json:"name"`
	Questions []QuestionImport `json:"questions"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Text    string         `json:"text"`
	Options []OptionImport `json:"options"`
}

// OptionImport is one choice of a QuestionImport.
type OptionImport struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}
