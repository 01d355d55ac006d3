package grpc

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Server struct {
	confirmationService *service.ConfirmationService
}

func NewServer(confirmationService *service.ConfirmationService) *Server {
	return &Server{confirmationService: confirmationService}
}

func (s *Server) StartConfirmation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)
	r := &types.ConfirmationRequest{SessionId: req.GetValue()}
	if err := r.Validate(); err != nil {
		l.WithError(err).Debug("Start confirmation validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, ok := session.FromIncomingGRPC(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Not authenticated")
	}

	item, err := s.confirmationService.Start(ctx, r.GetSessionId(), sess)
	if err != nil {
		return nil, toStatus(err, l, "Start confirmation failed")
	}

	resp, err := mapper.ConfirmationToStruct(item)
	if err != nil {
		l.WithError(err).Error("Encode confirmation failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return resp, nil
}

func (s *Server) GetConfirmation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)
	r := &types.ConfirmationRequest{SessionId: req.GetValue()}
	if err := r.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.confirmationService.Get(ctx, r.GetSessionId())
	if err != nil {
		return nil, toStatus(err, l, "Get confirmation failed")
	}

	resp, err := mapper.ConfirmationToStruct(item)
	if err != nil {
		l.WithError(err).Error("Encode confirmation failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return resp, nil
}

func toStatus(err error, l *logrus.Entry, msg string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "Not authenticated")
	case errors.Is(err, service.ErrConfirmationNotFound):
		return status.Error(codes.NotFound, "confirmation not found")
	case errors.Is(err, service.ErrAlreadyInFlight):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		l.WithError(err).Error(msg)
		return status.Error(codes.Internal, "internal server error")
	}
}
