package services

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidLimit  = errors.New("limit must be between 1 and 100")
	ErrInvalidCursor = errors.New("cursor must be a finite number")
	ErrInvalidAction = errors.New("unknown engagement action")
	ErrNoteNotReady  = errors.New("note is not processed")
)

// TransientError 存储层 I/O 失败（断连、超时），调用方可以重试
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsRetryable 报告 err 是否为可重试的临时错误
func IsRetryable(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsValidation 客户端可修正的参数错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidCursor) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrNoteNotReady)
}
