package main

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("failed to save")
	ErrInsufficientInput = errors.New("need both players and characters")
	ErrUnauthorized      = errors.New("incorrect password")
	ErrBackstoryDisabled = errors.New("backstory drafting is disabled (set backstory_provider to enable)")
)
