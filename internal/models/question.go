package models

import (
	"encoding/json"
	"time"
)

// Question is one entry of the shared question bank. Answer values submitted
// by players are indexes into the options list.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Text      string    `gorm:"type:text;not null;uniqueIndex:idx_questions_text" json:"text"`
	Category  string    `gorm:"type:varchar(40);not null;index:idx_questions_category" json:"category"`
	Audience  Audience  `gorm:"type:varchar(10);not null;index:idx_questions_audience" json:"audience"`
	Options   string    `gorm:"type:json" json:"-"`
	Active    bool      `gorm:"default:true;index:idx_questions_active" json:"active"`
}

// TableName specifies the table name for GORM
func (Question) TableName() string {
	return "questions"
}

// OptionList returns the answer choices (abstracted as JSON in the row).
func (q *Question) OptionList() []string {
	if q.Options == "" {
		return nil
	}
	var options []string
	_ = json.Unmarshal([]byte(q.Options), &options)
	return options
}

// SetOptionList stores the answer choices.
func (q *Question) SetOptionList(options []string) {
	bytes, _ := json.Marshal(options)
	q.Options = string(bytes)
}

// OptionCount returns the number of answer choices.
func (q *Question) OptionCount() int {
	return len(q.OptionList())
}

// ValidOption reports whether option indexes one of the answer choices.
func (q *Question) ValidOption(option int) bool {
	return option >= 0 && option < q.OptionCount()
}
