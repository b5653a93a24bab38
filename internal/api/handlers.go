package api

import (
	"context"
	"strings"
	"time"

	bookingv1 "courtbook/internal/api/gen/booking/v1"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BookingService serves bookingv1.BookingService on top of the booking core.
type BookingService struct {
	bookingv1.UnimplementedBookingServiceServer
	core BookingCore
}

func NewBookingService(core BookingCore) *BookingService {
	return &BookingService{core: core}
}

func (s *BookingService) RequestBooking(ctx context.Context, req *bookingv1.RequestBookingRequest) (
	*bookingv1.BookingResponse, error) {
	fieldCode := strings.TrimSpace(req.FieldCode)
	if fieldCode == "" {
		return nil, status.Error(codes.InvalidArgument, "field_code is required")
	}
	requester := strings.TrimSpace(req.RequesterId)
	if requester == "" {
		return nil, status.Error(codes.InvalidArgument, "requester_id is required")
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	booking, err := s.core.RequestBooking(ctx, service.BookingRequest{
		FieldCode:    fieldCode,
		RequesterID:  requester,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Participants: int(req.Participants),
		Notes:        req.Notes,
		Actor:        req.Actor,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return &bookingv1.BookingResponse{Booking: toProto(booking)}, nil
}

func (s *BookingService) Transition(ctx context.Context, req *bookingv1.TransitionRequest) (
	*bookingv1.BookingResponse, error) {
	if req.Id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	booking, err := s.core.Transition(ctx, req.Id, strings.TrimSpace(req.Action), req.Actor)
	if err != nil {
		return nil, grpcError(err)
	}
	return &bookingv1.BookingResponse{Booking: toProto(booking)}, nil
}

func (s *BookingService) ListActive(ctx context.Context, req *bookingv1.ListActiveRequest) (
	*bookingv1.ListActiveResponse, error) {
	if strings.TrimSpace(req.FieldCode) == "" {
		return nil, status.Error(codes.InvalidArgument, "field_code is required")
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	bookings, err := s.core.ListActive(ctx, strings.TrimSpace(req.FieldCode), date)
	if err != nil {
		return nil, grpcError(err)
	}
	out := make([]*bookingv1.Booking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toProto(b))
	}
	return &bookingv1.ListActiveResponse{Bookings: out}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, req *bookingv1.GetBookingRequest) (
	*bookingv1.BookingResponse, error) {
	var (
		booking *models.Booking
		err     error
	)
	switch {
	case req.Id > 0:
		booking, err = s.core.GetBooking(ctx, req.Id)
	case strings.TrimSpace(req.Reference) != "":
		booking, err = s.core.GetBookingByReference(ctx, strings.TrimSpace(req.Reference))
	default:
		return nil, status.Error(codes.InvalidArgument, "id or reference is required")
	}
	if err != nil {
		return nil, grpcError(err)
	}
	return &bookingv1.BookingResponse{Booking: toProto(booking)}, nil
}

func (s *BookingService) TotalAmount(ctx context.Context, req *bookingv1.TotalAmountRequest) (
	*bookingv1.TotalAmountResponse, error) {
	booking, err := s.core.GetBooking(ctx, req.Id)
	if err != nil {
		return nil, grpcError(err)
	}
	amount, err := s.core.TotalAmount(ctx, req.Id)
	if err != nil {
		return nil, grpcError(err)
	}
	return &bookingv1.TotalAmountResponse{
		Id:     booking.ID,
		Hours:  booking.Duration(),
		Amount: amount.StringFixed(2),
	}, nil
}

func (s *BookingService) SetPayment(ctx context.Context, req *bookingv1.SetPaymentRequest) (
	*bookingv1.BookingResponse, error) {
	booking, err := s.core.SetPaymentStatus(ctx, req.Id, strings.TrimSpace(req.Status), req.Actor)
	if err != nil {
		return nil, grpcError(err)
	}
	return &bookingv1.BookingResponse{Booking: toProto(booking)}, nil
}

func (s *BookingService) parseDate(raw string) (t time.Time, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return t, status.Error(codes.InvalidArgument, "date is required")
	}
	t, err = models.ParseDate(raw, s.core.Location())
	if err != nil {
		return t, status.Error(codes.InvalidArgument, "invalid date format; expected YYYY-MM-DD")
	}
	return t, nil
}

func toProto(b *models.Booking) *bookingv1.Booking {
	return &bookingv1.Booking{
		Id:            b.ID,
		Reference:     b.Reference,
		FieldCode:     b.FieldCode,
		FieldName:     b.FieldName,
		RequesterId:   b.RequesterID,
		Date:          b.DateKey(),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Participants:  int32(b.Participants),
		Notes:         b.Notes,
		State:         b.State,
		PaymentStatus: b.PaymentStatus,
		Version:       b.Version,
	}
}
