package model

import "errors"

var (
	// ErrNotFound возвращается репозиториями, когда запись отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput - ошибка валидации входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyTimeline - ни одна сцена не занимает ни одного кадра.
	ErrEmptyTimeline = errors.New("timeline has no frames")
)
