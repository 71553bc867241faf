package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a community member. Email and PassHash are optional: accounts
// synced from an external login method carry neither, and such accounts
// cannot authenticate through the password path.
type User struct {
	ID                string     `json:"id"`
	Email             *string    `json:"email,omitempty"`
	Name              *string    `json:"name,omitempty"`
	Nickname          *string    `json:"nickname,omitempty"`
	LoginMethod       *string    `json:"login_method,omitempty"`
	PassHash          []byte     `json:"-"`
	IsVerified        bool       `json:"is_verified"`
	VerificationToken *string    `json:"-"`
	Role              string     `json:"role"`
	CreatedAt         time.Time  `json:"created_at"`
	LastSignedIn      *time.Time `json:"last_signed_in,omitempty"`
}

type SunoPost struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	YoutubeURL string    `json:"youtube_url"`
	Comment    string    `json:"comment"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
}

type ManusQuestion struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ManusAnswer struct {
	ID         int64     `json:"id"`
	QuestionID int64     `json:"question_id"`
	UserID     string    `json:"user_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type Announcement struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailMessage is the payload published to the mail queue and consumed
// by the mail_sender worker.
type EmailMessage struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}
