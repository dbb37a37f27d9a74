package models

// CounterSnapshot is a point-in-time copy of the activity counters.
type CounterSnapshot struct {
	PostsSeen    int64 `json:"posts_seen"`
	CommentsSeen int64 `json:"comments_seen"`
	InboxSeen    int64 `json:"inbox_seen"`
	PostsMade    int64 `json:"posts_made"`
	CommentsMade int64 `json:"comments_made"`
}

// AgentStatus is what the status endpoint reports.
type AgentStatus struct {
	Username  string          `json:"username"`
	Subreddit string          `json:"subreddit"`
	Counters  CounterSnapshot `json:"counters"`
	Budget    BudgetStatus    `json:"budget"`
}
