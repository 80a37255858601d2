package internal

import "time"

// TranslationRequest is one document going into one target language.
type TranslationRequest struct {
	// ID is the checkpoint run id, empty when no journal is kept.
	ID         string    `json:"id,omitempty"`
	InputFile  string    `json:"input_file"`
	OutputFile string    `json:"output_file"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	Timestamp  time.Time `json:"timestamp"`
}

// GradingRequest is one translated document to grade against its source.
type GradingRequest struct {
	ID              string    `json:"id,omitempty"`
	InputFile       string    `json:"input_file"`
	TranslationFile string    `json:"translation_file"`
	OutputFile      string    `json:"output_file"`
	SourceLang      string    `json:"source_lang"`
	TargetLang      string    `json:"target_lang"`
	Timestamp       time.Time `json:"timestamp"`
}
