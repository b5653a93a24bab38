// Package bookingv1 describes the courtbook.booking.v1 gRPC service. Messages
// are plain structs, not protobuf, and travel as JSON under the "json"
// content-subtype (application/grpc+json). Clients must send every call with
// grpc.CallContentSubtype(CodecName); NewBookingServiceClient does this. A
// call made with the default proto codec fails to marshal.
package bookingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "courtbook.booking.v1.BookingService"

const (
	BookingService_RequestBooking_FullMethodName = "/" + ServiceName + "/RequestBooking"
	BookingService_Transition_FullMethodName     = "/" + ServiceName + "/Transition"
	BookingService_ListActive_FullMethodName     = "/" + ServiceName + "/ListActive"
	BookingService_GetBooking_FullMethodName     = "/" + ServiceName + "/GetBooking"
	BookingService_TotalAmount_FullMethodName    = "/" + ServiceName + "/TotalAmount"
	BookingService_SetPayment_FullMethodName     = "/" + ServiceName + "/SetPayment"
)

type Booking struct {
	Id            int64   `json:"id"`
	Reference     string  `json:"reference"`
	FieldCode     string  `json:"field_code"`
	FieldName     string  `json:"field_name,omitempty"`
	RequesterId   string  `json:"requester_id"`
	Date          string  `json:"date"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	Participants  int32   `json:"participants"`
	Notes         string  `json:"notes,omitempty"`
	State         string  `json:"state"`
	PaymentStatus string  `json:"payment_status"`
	Version       int64   `json:"version"`
}

type RequestBookingRequest struct {
	FieldCode    string  `json:"field_code"`
	RequesterId  string  `json:"requester_id"`
	Date         string  `json:"date"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Participants int32   `json:"participants"`
	Notes        string  `json:"notes,omitempty"`
	Actor        string  `json:"actor,omitempty"`
}

type BookingResponse struct {
	Booking *Booking `json:"booking"`
}

type TransitionRequest struct {
	Id     int64  `json:"id"`
	Action string `json:"action"`
	Actor  string `json:"actor,omitempty"`
}

type ListActiveRequest struct {
	FieldCode string `json:"field_code"`
	Date      string `json:"date"`
}

type ListActiveResponse struct {
	Bookings []*Booking `json:"bookings"`
}

type GetBookingRequest struct {
	Id        int64  `json:"id,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type TotalAmountRequest struct {
	Id int64 `json:"id"`
}

type TotalAmountResponse struct {
	Id     int64   `json:"id"`
	Hours  float64 `json:"hours"`
	Amount string  `json:"amount"`
}

type SetPaymentRequest struct {
	Id     int64  `json:"id"`
	Status string `json:"status"`
	Actor  string `json:"actor,omitempty"`
}

// BookingServiceServer is the server API for BookingService.
type BookingServiceServer interface {
	RequestBooking(context.Context, *RequestBookingRequest) (*BookingResponse, error)
	Transition(context.Context, *TransitionRequest) (*BookingResponse, error)
	ListActive(context.Context, *ListActiveRequest) (*ListActiveResponse, error)
	GetBooking(context.Context, *GetBookingRequest) (*BookingResponse, error)
	TotalAmount(context.Context, *TotalAmountRequest) (*TotalAmountResponse, error)
	SetPayment(context.Context, *SetPaymentRequest) (*BookingResponse, error)
}

// UnimplementedBookingServiceServer can be embedded to have forward compatible implementations.
type UnimplementedBookingServiceServer struct{}

func (UnimplementedBookingServiceServer) RequestBooking(context.Context, *RequestBookingRequest) (*BookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestBooking not implemented")
}
func (UnimplementedBookingServiceServer) Transition(context.Context, *TransitionRequest) (*BookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transition not implemented")
}
func (UnimplementedBookingServiceServer) ListActive(context.Context, *ListActiveRequest) (*ListActiveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListActive not implemented")
}
func (UnimplementedBookingServiceServer) GetBooking(context.Context, *GetBookingRequest) (*BookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBooking not implemented")
}
func (UnimplementedBookingServiceServer) TotalAmount(context.Context, *TotalAmountRequest) (*TotalAmountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method TotalAmount not implemented")
}
func (UnimplementedBookingServiceServer) SetPayment(context.Context, *SetPaymentRequest) (*BookingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetPayment not implemented")
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(BookingServiceServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingService_ServiceDesc is the grpc.ServiceDesc for BookingService.
var BookingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestBooking",
			Handler:    unaryHandler(BookingService_RequestBooking_FullMethodName, BookingServiceServer.RequestBooking),
		},
		{
			MethodName: "Transition",
			Handler:    unaryHandler(BookingService_Transition_FullMethodName, BookingServiceServer.Transition),
		},
		{
			MethodName: "ListActive",
			Handler:    unaryHandler(BookingService_ListActive_FullMethodName, BookingServiceServer.ListActive),
		},
		{
			MethodName: "GetBooking",
			Handler:    unaryHandler(BookingService_GetBooking_FullMethodName, BookingServiceServer.GetBooking),
		},
		{
			MethodName: "TotalAmount",
			Handler:    unaryHandler(BookingService_TotalAmount_FullMethodName, BookingServiceServer.TotalAmount),
		},
		{
			MethodName: "SetPayment",
			Handler:    unaryHandler(BookingService_SetPayment_FullMethodName, BookingServiceServer.SetPayment),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courtbook/booking/v1/booking.proto",
}

// BookingServiceClient is the client API for BookingService. Its calls always
// carry the json content-subtype.
type BookingServiceClient interface {
	RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error)
	Transition(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*BookingResponse, error)
	ListActive(ctx context.Context, in *ListActiveRequest, opts ...grpc.CallOption) (*ListActiveResponse, error)
	GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error)
	TotalAmount(ctx context.Context, in *TotalAmountRequest, opts ...grpc.CallOption) (*TotalAmountResponse, error)
	SetPayment(ctx context.Context, in *SetPaymentRequest, opts ...grpc.CallOption) (*BookingResponse, error)
}

type bookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) BookingServiceClient {
	return &bookingServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *bookingServiceClient) RequestBooking(ctx context.Context, in *RequestBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, BookingService_RequestBooking_FullMethodName, in, opts)
}

func (c *bookingServiceClient) Transition(ctx context.Context, in *TransitionRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, BookingService_Transition_FullMethodName, in, opts)
}

func (c *bookingServiceClient) ListActive(ctx context.Context, in *ListActiveRequest, opts ...grpc.CallOption) (*ListActiveResponse, error) {
	return invoke[ListActiveResponse](ctx, c.cc, BookingService_ListActive_FullMethodName, in, opts)
}

func (c *bookingServiceClient) GetBooking(ctx context.Context, in *GetBookingRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, BookingService_GetBooking_FullMethodName, in, opts)
}

func (c *bookingServiceClient) TotalAmount(ctx context.Context, in *TotalAmountRequest, opts ...grpc.CallOption) (*TotalAmountResponse, error) {
	return invoke[TotalAmountResponse](ctx, c.cc, BookingService_TotalAmount_FullMethodName, in, opts)
}

func (c *bookingServiceClient) SetPayment(ctx context.Context, in *SetPaymentRequest, opts ...grpc.CallOption) (*BookingResponse, error) {
	return invoke[BookingResponse](ctx, c.cc, BookingService_SetPayment_FullMethodName, in, opts)
}
