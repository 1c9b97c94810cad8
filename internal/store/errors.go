package store

import "errors"

var (
	// ErrKeyNotFound is returned when a key is not found
	ErrKeyNotFound = errors.New("key not found")

	// ErrPlanNotFound is returned when a plan is not found
	ErrPlanNotFound = errors.New("plan not found")

	// ErrWebhookNotFound is returned when a webhook is not found
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrDuplicatePlan is returned when a plan with the same name exists
	ErrDuplicatePlan = errors.New("plan already exists")
)
