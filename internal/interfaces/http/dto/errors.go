package dto

import (
	"net/http"
	"strings"
)

// API error codes. Generic codes use the ERR_ prefix; fulfillment codes
// keep their domain spelling so scanner clients can match on them.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"

	ErrCodeOrderItemNotFound = "ORDER_ITEM_NOT_FOUND"
	ErrCodeOrderNotEligible  = "ORDER_NOT_ELIGIBLE"
)

var codeStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeOrderItemNotFound:   http.StatusNotFound,
	ErrCodeOrderNotEligible:    http.StatusUnprocessableEntity,
}

// generic domain codes that are renamed on the way out
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
}

// HTTPStatus returns the status for an API error code, 500 when unknown
func HTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromDomainCode maps a domain error code to the API code and status.
// Unmapped codes pass through: INVALID_* is a 400, DUPLICATE_* a 409 and
// anything else a 422.
func FromDomainCode(domainCode string) (string, int) {
	code := domainCode
	if renamed, ok := domainCodes[domainCode]; ok {
		code = renamed
	}
	if status, ok := codeStatus[code]; ok {
		return code, status
	}
	switch {
	case strings.HasPrefix(code, "INVALID_"):
		return code, http.StatusBadRequest
	case strings.HasPrefix(code, "DUPLICATE_"):
		return code, http.StatusConflict
	}
	return code, http.StatusUnprocessableEntity
}
