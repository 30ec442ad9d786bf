package httpadapter

import (
	"net/http"

	"github.com/chirplabs/chirp/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrBotNotFound), domain.IsKind(err, domain.ErrSourceNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrQuotaExhausted), domain.IsKind(err, domain.ErrAdmissionRejected):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrProvider), domain.IsKind(err, domain.ErrIndex):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
