package models

import "time"

// Lead is a scored prospect that can be converted into a case.
type Lead struct {
	ID              string     `db:"id" json:"id"`
	FullName        string     `db:"full_name" json:"full_name"`
	Email           *string    `db:"email" json:"email,omitempty"`
	InfluencerID    *string    `db:"influencer_id" json:"influencer_id,omitempty"`
	Score           int        `db:"score" json:"score"`
	LastContactedAt *time.Time `db:"last_contacted_at" json:"last_contacted_at,omitempty"`
	CaseID          *string    `db:"case_id" json:"case_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
