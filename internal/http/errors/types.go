package errors

import "net/http"

// =================================================================================
// 400
// =================================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "The request is malformed or missing parameters.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "The request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingFields = &AppError{
		Code:       "MISSING_FIELDS",
		Message:    "Required fields are missing.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "The request body exceeds the allowed size.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

// =================================================================================
// OAUTH (400 salvo indicación)
// =================================================================================

var (
	ErrProviderNotEnabled = &AppError{
		Code:       "provider_not_enabled",
		Message:    "The provider is not enabled.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrStateExpired = &AppError{
		Code:       "state_expired",
		Message:    "The authorization flow expired. Start again.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrStateInvalid = &AppError{
		Code:       "state_invalid",
		Message:    "The state parameter is invalid.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrPKCEMismatch = &AppError{
		Code:       "pkce_mismatch",
		Message:    "The code verifier does not match the challenge.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrProviderError es genérico a propósito; el detalle queda en logs.
	ErrProviderError = &AppError{
		Code:       "provider_error",
		Message:    "The identity provider rejected the request.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrEmailRequired = &AppError{
		Code:       "email_required",
		Message:    "The provider account has no email address.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrLockout = &AppError{
		Code:       "lockout",
		Message:    "Cannot unlink the last login method.",
		Detail:     "Set a password or link another provider first.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrEncryption = &AppError{
		Code:       "encryption_error",
		Message:    "Stored provider tokens could not be read.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrConfig = &AppError{
		Code:       "config_error",
		Message:    "The provider is not configured correctly.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// =================================================================================
// 401 / 403 / 404 / 405 / 409 / 429
// =================================================================================

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "Missing bearer token.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "The token is invalid.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpired = &AppError{
		Code:       "TOKEN_EXPIRED",
		Message:    "The token has expired.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrAccountDisabled = &AppError{
		Code:       "ACCOUNT_DISABLED",
		Message:    "The account is disabled.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotLinked = &AppError{
		Code:       "not_linked",
		Message:    "The provider is not linked to this account.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Method not allowed.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "The provider account is already linked.",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// =================================================================================
// 5xx
// =================================================================================

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
