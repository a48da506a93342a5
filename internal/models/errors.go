package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData — ряд свечей слишком короткий для индикаторов.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDecode — ответ биржи неизвестной формы.
	ErrDecode = errors.New("unexpected payload shape")
)

// InsufficientDataError уточняет, сколько свечей было и сколько нужно.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d candles, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// TransientNetworkError — таймаут, обрыв, 5xx; ретраится внутри клиента.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// BrokerRejection — биржа отклонила запрос.
type BrokerRejection struct {
	Code    int
	Message string
}

func (e *BrokerRejection) Error() string {
	return fmt.Sprintf("broker rejected: code=%d msg=%s", e.Code, e.Message)
}

// ConfigurationError — невалидная конфигурация, фатально на старте.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func IsTransient(err error) bool {
	var t *TransientNetworkError
	return errors.As(err, &t)
}

func IsRejection(err error) bool {
	var r *BrokerRejection
	return errors.As(err, &r)
}
