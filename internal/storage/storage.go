package storage

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrTokenNotFound        = errors.New("verification token not found")
	ErrPostNotFound         = errors.New("post not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrSettingNotFound      = errors.New("setting not found")
)
