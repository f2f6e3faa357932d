package models

import "time"

// MonthlyCount is the number of individual messages sent in a month (YYYY-MM).
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// ContactStats summarises the contact book for a teacher's audience.
type ContactStats struct {
	BroadcastCount  int            `json:"broadcast_count"`
	IndividualCount int            `json:"individual_count"`
	ReadCount       int            `json:"read_count"`
	UnreadCount     int            `json:"unread_count"`
	RepliedCount    int            `json:"replied_count"`
	Monthly         []MonthlyCount `json:"monthly"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
