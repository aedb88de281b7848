package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ai-whiteboard/api/internal/llm"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

var grpcToHTTP = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Canceled:           499,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
}

// classify turns a genai client error into *llm.ProviderError.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return llm.TransportError(ctx, providerName, err)
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		status := ae.HTTPCode()
		if status <= 0 {
			if st := ae.GRPCStatus(); st != nil {
				status = grpcToHTTP[st.Code()]
			}
		}
		msg := ae.Error()
		if r := ae.Reason(); r != "" && !strings.Contains(msg, r) {
			msg += " (" + r + ")"
		}
		pe := llm.NewProviderError(providerName, status, msg)
		pe.Err = err
		return pe
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		msg := ge.Message
		if msg == "" {
			msg = ge.Body
		}
		pe := llm.NewProviderError(providerName, ge.Code, msg)
		pe.Err = err
		return pe
	}

	return llm.TransportError(ctx, providerName, err)
}
