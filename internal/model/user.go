// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a person tracking prices. ID is the opaque numeric identity handed
// to us by the chat front-end (a Telegram user id in practice).
//
// ReferredBy is a weak reference: the referrer row may be gone, in which case
// the column is NULL. MaxProducts starts at the configured default and grows
// by the referral bonus for every distinct user this user refers.
type User struct {
	ID            int64     `json:"id"            db:"id"`
	Handle        string    `json:"handle"        db:"handle"` // may be empty
	ReferralCode  string    `json:"referralCode"  db:"referral_code"`
	ReferredBy    *int64    `json:"referredBy"    db:"referred_by"`
	ReferralCount int       `json:"referralCount" db:"referral_count"`
	MaxProducts   int       `json:"maxProducts"   db:"max_products"`
	Premium       bool      `json:"premium"       db:"premium"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
}

// ReferredUser is one entry of a referrer's "who joined through me" list.
type ReferredUser struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReferralStats summarises a user's referral programme standing.
type ReferralStats struct {
	ReferralCode  string         `json:"referralCode"`
	ReferralCount int            `json:"referralCount"`
	MaxProducts   int            `json:"maxProducts"`
	Premium       bool           `json:"premium"`
	Referred      []ReferredUser `json:"referred"`
}

// Limits is the quota view shown by the /limits command.
type Limits struct {
	Used      int  `json:"used"`
	Max       int  `json:"max"`
	Remaining int  `json:"remaining"`
	Premium   bool `json:"premium"`
}
