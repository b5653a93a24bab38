package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"courtbook/internal/domain"
	"courtbook/internal/repository"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "courtbook"

type errorBody struct {
	Kind     string               `json:"kind,omitempty"`
	Reason   string               `json:"reason,omitempty"`
	Message  string               `json:"message"`
	Conflict *domain.ConflictInfo `json:"conflict,omitempty"`
}

// httpStatusFor maps a core error onto an HTTP status code.
func httpStatusFor(err error) int {
	if rej, ok := domain.AsRejection(err); ok {
		switch rej.Kind {
		case domain.KindValidation:
			return http.StatusUnprocessableEntity
		case domain.KindConflict, domain.KindIllegalTransition:
			return http.StatusConflict
		case domain.KindNotFound:
			return http.StatusNotFound
		}
	}
	switch {
	case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrSequenceTaken):
		return http.StatusConflict
	case errors.Is(err, repository.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorBodyFor(err error) errorBody {
	if rej, ok := domain.AsRejection(err); ok {
		return errorBody{
			Kind:     string(rej.Kind),
			Reason:   string(rej.Reason),
			Message:  rej.Message,
			Conflict: rej.Conflict,
		}
	}
	if httpStatusFor(err) == http.StatusInternalServerError {
		return errorBody{Message: "internal error"}
	}
	return errorBody{Message: err.Error()}
}

func grpcCodeFor(err error) codes.Code {
	if rej, ok := domain.AsRejection(err); ok {
		switch rej.Kind {
		case domain.KindValidation:
			return codes.InvalidArgument
		case domain.KindConflict:
			return codes.AlreadyExists
		case domain.KindIllegalTransition:
			return codes.FailedPrecondition
		case domain.KindNotFound:
			return codes.NotFound
		}
	}
	switch {
	case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrSequenceTaken):
		return codes.Aborted
	case errors.Is(err, repository.ErrLockTimeout):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

// grpcError converts a core error into a status. Rejections carry an
// ErrorInfo detail with the reason code and the blocking booking, if any.
func grpcError(err error) error {
	code := grpcCodeFor(err)
	rej, ok := domain.AsRejection(err)
	if !ok {
		if code == codes.Internal {
			return status.Error(code, "internal error")
		}
		return status.Error(code, err.Error())
	}

	st := status.New(code, rej.Error())
	info := &errdetails.ErrorInfo{
		Reason:   string(rej.Reason),
		Domain:   errorDomain,
		Metadata: map[string]string{"kind": string(rej.Kind)},
	}
	if rej.Conflict != nil {
		info.Metadata["blocking_booking_id"] = strconv.FormatInt(rej.Conflict.BookingID, 10)
		info.Metadata["blocking_reference"] = rej.Conflict.Reference
	}
	if withDetails, derr := st.WithDetails(info); derr == nil {
		st = withDetails
	}
	return st.Err()
}

// RejectionInfo extracts the ErrorInfo detail from a gRPC error.
func RejectionInfo(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == errorDomain {
			return info, true
		}
	}
	return nil, false
}
