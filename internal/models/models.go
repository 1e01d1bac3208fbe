package models

import "time"

// DateGroup holds the messages of one calendar date in chat order.
type DateGroup struct {
	Date     string   `json:"date"`
	Messages []string `json:"messages"`
}

// Subject is the result of topic classification
type Subject struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Score    float64 `json:"score,omitempty"`
}

// Keyword is an accumulated keyword score for one date-group.
type Keyword struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// GroupAnalysis is the per-date output of the analysis stages.
// Err is set when a model call failed for this date only.
type GroupAnalysis struct {
	Date     string    `json:"date"`
	Subject  string    `json:"subject"`
	Category string    `json:"category"`
	Intimacy float64   `json:"intimacy"`
	Keywords []Keyword `json:"keywords"`
	Err      error     `json:"-"`
}

// GroupRecommendation pairs a date-group analysis with its gift list.
type GroupRecommendation struct {
	Analysis GroupAnalysis `json:"analysis"`
	Items    []GiftItem    `json:"recommendations"`
}

// Upload represents a stored chat export
type Upload struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a persisted summary of one analysed date-group.
type Report struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Subject   string    `json:"subject"`
	Category  string    `json:"category"`
	Intimacy  float64   `json:"intimacy"`
	Keywords  []string  `json:"keywords"`
	Products  []string  `json:"products"`
	CreatedAt time.Time `json:"created_at"`
}
