package models

import "errors"

var (
	// ErrLetterNotFound 信件不存在错误
	ErrLetterNotFound = errors.New("letter not found")

	// ErrAnnotationRunNotFound 标注运行不存在错误
	ErrAnnotationRunNotFound = errors.New("annotation run not found")

	// ErrInvalidLetterStatus 无效的信件状态错误
	ErrInvalidLetterStatus = errors.New("invalid letter status")
)
