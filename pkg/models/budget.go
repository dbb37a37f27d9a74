package models

import "time"

// SpendPurpose labels what a budget charge paid for.
type SpendPurpose string

const (
	SpendPostPrompt  SpendPurpose = "post_prompt"
	SpendReplyPrompt SpendPurpose = "reply_prompt"
	SpendRerank      SpendPurpose = "rerank"
	SpendReplyScore  SpendPurpose = "reply_score"
	SpendTopic       SpendPurpose = "topic"
)

// BudgetStatus shows the current day's spend against the daily cap.
type BudgetStatus struct {
	Day       string `json:"day"`
	Spent     int64  `json:"spent"`
	Cap       int64  `json:"cap"`
	Remaining int64  `json:"remaining"`
	Percent   int    `json:"percent"`
}

// SpendRecord is a single admitted charge against the daily budget.
type SpendRecord struct {
	ID        int64        `json:"id"`
	Purpose   SpendPurpose `json:"purpose"`
	Cost      int64        `json:"cost"`
	CreatedAt time.Time    `json:"created_at"`
}

// SpendSummary aggregates spend per day and purpose.
type SpendSummary struct {
	Day     string       `json:"day"`
	Purpose SpendPurpose `json:"purpose"`
	Charges int          `json:"charges"`
	Total   int64        `json:"total"`
}
