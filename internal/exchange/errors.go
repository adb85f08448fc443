package exchange

import (
	"errors"
	"fmt"
)

// Семантические коды ошибок Bybit V5, которые вызывающий код обязан
// классифицировать, а не просто пробрасывать наверх.
const (
	codeOrderNotExists     = 110001 // order not exists or too late to cancel
	codeSpotOrderNotExists = 170213 // spot: order does not exist
	codeSpotInvalidSymbol  = 170121 // spot: invalid symbol
	codeInvalidSymbol      = 10001  // request parameter error
)

// APIError структурированная ошибка API биржи
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Msg)
}

// IsUnknownOrder проверяет, что биржа не знает такой ордер
// (уже исполнен или отменен слишком давно)
func IsUnknownOrder(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeOrderNotExists || apiErr.Code == codeSpotOrderNotExists
}

// IsInvalidSymbol проверяет ошибку некорректного символа
func IsInvalidSymbol(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == codeSpotInvalidSymbol || apiErr.Code == codeInvalidSymbol
}
