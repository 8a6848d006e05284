package domain

import "errors"

var (
	ErrEmptyTitle      = errors.New("notification title must not be empty")
	ErrEmptyMessage    = errors.New("notification message must not be empty")
	ErrInvalidType     = errors.New("invalid notification type")
	ErrInvalidPriority = errors.New("invalid notification priority")
	ErrRecordNotFound  = errors.New("notification record not found")
	ErrDeviceNotFound  = errors.New("device not found")
)
