package crmsync

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	commonhttp "lead-intake/internal/common/http"
)

// Classify maps a failed CRM call to a sync error type.
func Classify(err error) apperrors.SyncErrorType {
	if err == nil {
		return ""
	}

	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	var apiErr *crm.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Msg)
		if strings.Contains(msg, "token") || strings.Contains(msg, "auth") || strings.Contains(msg, "권한") {
			return apperrors.SyncAuth
		}
		return apperrors.SyncValidation
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.SyncTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperrors.SyncTimeout
		}
		return apperrors.SyncNetwork
	}

	return apperrors.SyncUnknown
}

func classifyStatus(code int) apperrors.SyncErrorType {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.SyncAuth
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return apperrors.SyncTimeout
	case code >= 500:
		return apperrors.SyncServer
	case code >= 400:
		return apperrors.SyncValidation
	}
	return apperrors.SyncUnknown
}
