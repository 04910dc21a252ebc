package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// SplitService implements the Connect SplitService
type SplitService struct {
	apiconnect.UnimplementedSplitServiceHandler
}

// NewSplitService creates a new SplitService.
func NewSplitService() *SplitService {
	return &SplitService{}
}

// ComputeSplit previews how a total divides among participants. Nothing is stored.
func (s *SplitService) ComputeSplit(ctx context.Context, req *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error) {
	method := models.ParseSplitMethod(req.Msg.SplitMethod)
	if method == models.SplitUnknown {
		return nil, invalidArgument("unknown split method %q", req.Msg.SplitMethod)
	}

	split := calculator.ComputeSplit(req.Msg.TotalAmount, toModelParticipants(req.Msg.Participants), method)
	slog.Debug("ComputeSplit",
		"method", method,
		"total", req.Msg.TotalAmount,
		"participants", len(split),
	)

	return connect.NewResponse(&api.ComputeSplitResponse{
		SplitMethod:  string(method),
		Participants: toAPIParticipants(split),
	}), nil
}
