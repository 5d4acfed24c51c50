package grpcserver

import (
	"context"
	"errors"
	"strconv"

	economyv1 "github.com/MarkoPoloResearchLab/focusledger/api/economy/v1"
	"github.com/MarkoPoloResearchLab/focusledger/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Option configures an EconomyServiceServer.
type Option func(*EconomyServiceServer)

// WithSubmitLimiter throttles submissions per sender address.
func WithSubmitLimiter(limiter ratelimit.Limiter) Option {
	return func(server *EconomyServiceServer) {
		server.limiter = limiter
	}
}

// WithLogger sets the logger used for unexpected failures.
func WithLogger(logger *zap.Logger) Option {
	return func(server *EconomyServiceServer) {
		if logger != nil {
			server.logger = logger
		}
	}
}

// EconomyServiceServer exposes the economy ledger over gRPC.
type EconomyServiceServer struct {
	economyv1.UnimplementedEconomyServiceServer
	economyService *economy.Service
	limiter        ratelimit.Limiter
	logger         *zap.Logger
}

// NewEconomyServiceServer constructs a gRPC server for the economy service.
func NewEconomyServiceServer(economyService *economy.Service, options ...Option) *EconomyServiceServer {
	server := &EconomyServiceServer{economyService: economyService, logger: zap.NewNop()}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	return server
}

func (server *EconomyServiceServer) GetNetwork(context.Context, *economyv1.GetNetworkRequest) (*economyv1.GetNetworkResponse, error) {
	return &economyv1.GetNetworkResponse{
		Network:    server.economyService.Network(),
		GasPerCall: server.economyService.GasPerCall(),
	}, nil
}

func (server *EconomyServiceServer) Submit(ctx context.Context, request *economyv1.SubmitRequest) (*economyv1.SubmitResponse, error) {
	submission, err := signer.Verify(request.Token)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	if server.limiter != nil {
		if err := server.limiter.Allow(ctx, submission.Sender.String()); err != nil {
			return nil, server.mapToGRPCError(err)
		}
	}
	record, operationError := server.economyService.Submit(ctx, submission)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.SubmitResponse{Transaction: record}, nil
}

func (server *EconomyServiceServer) GetTransaction(ctx context.Context, request *economyv1.GetTransactionRequest) (*economyv1.GetTransactionResponse, error) {
	record, operationError := server.economyService.Transaction(ctx, request.Digest)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetTransactionResponse{Transaction: record}, nil
}

func (server *EconomyServiceServer) GetTreasury(ctx context.Context, _ *economyv1.GetTreasuryRequest) (*economyv1.GetTreasuryResponse, error) {
	treasury, operationError := server.economyService.Treasury(ctx)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetTreasuryResponse{Treasury: treasury}, nil
}

func (server *EconomyServiceServer) GetEconomyConfig(ctx context.Context, _ *economyv1.GetEconomyConfigRequest) (*economyv1.GetEconomyConfigResponse, error) {
	config, operationError := server.economyService.EconomyConfig(ctx)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetEconomyConfigResponse{Config: config}, nil
}

func (server *EconomyServiceServer) GetAccount(ctx context.Context, request *economyv1.GetAccountRequest) (*economyv1.GetAccountResponse, error) {
	address, err := economy.NewAddress(request.Address)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	account, operationError := server.economyService.Account(ctx, address)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetAccountResponse{Account: account}, nil
}

func (server *EconomyServiceServer) GetDailyRecord(ctx context.Context, request *economyv1.GetDailyRecordRequest) (*economyv1.GetDailyRecordResponse, error) {
	address, err := economy.NewAddress(request.Address)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	record, operationError := server.economyService.DailyRecord(ctx, address)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetDailyRecordResponse{Record: record}, nil
}

func (server *EconomyServiceServer) GetPayout(ctx context.Context, request *economyv1.GetPayoutRequest) (*economyv1.GetPayoutResponse, error) {
	address, err := economy.NewAddress(request.Address)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	payout, operationError := server.economyService.Payout(ctx, address, request.IdempotencyKey)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetPayoutResponse{Payout: payout}, nil
}

func (server *EconomyServiceServer) GetPet(ctx context.Context, request *economyv1.GetPetRequest) (*economyv1.GetPetResponse, error) {
	petID, err := economy.NewObjectID(request.PetID)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	petRecord, operationError := server.economyService.Pet(ctx, petID)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.GetPetResponse{Pet: petRecord}, nil
}

func (server *EconomyServiceServer) ListPets(ctx context.Context, request *economyv1.ListPetsRequest) (*economyv1.ListPetsResponse, error) {
	owner, err := economy.NewAddress(request.Owner)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	pets, operationError := server.economyService.PetsByOwner(ctx, owner)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.ListPetsResponse{Pets: pets}, nil
}

func (server *EconomyServiceServer) ListToys(ctx context.Context, request *economyv1.ListToysRequest) (*economyv1.ListToysResponse, error) {
	owner, err := economy.NewAddress(request.Owner)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	toys, operationError := server.economyService.ToysByOwner(ctx, owner)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.ListToysResponse{Toys: toys}, nil
}

func (server *EconomyServiceServer) RequestGas(ctx context.Context, request *economyv1.RequestGasRequest) (*economyv1.RequestGasResponse, error) {
	address, err := economy.NewAddress(request.Address)
	if err != nil {
		return nil, server.mapToGRPCError(err)
	}
	account, operationError := server.economyService.RequestGas(ctx, address)
	if operationError != nil {
		return nil, server.mapToGRPCError(operationError)
	}
	return &economyv1.RequestGasResponse{Account: account}, nil
}

func (server *EconomyServiceServer) mapToGRPCError(source error) error {
	var violation *economy.RuleViolation
	if errors.As(source, &violation) {
		return withErrorInfo(codes.FailedPrecondition, string(violation.Rule), map[string]string{
			economyv1.MetadataRule:      string(violation.Rule),
			economyv1.MetadataLimit:     strconv.FormatUint(violation.Limit, 10),
			economyv1.MetadataUsed:      strconv.FormatUint(violation.Used, 10),
			economyv1.MetadataRemaining: strconv.FormatUint(violation.Remaining, 10),
		})
	}
	var limited *ratelimit.LimitedError
	if errors.As(source, &limited) {
		return withErrorInfo(codes.ResourceExhausted, economyv1.ReasonRateLimited, map[string]string{
			economyv1.MetadataRetryAfter: strconv.FormatInt(limited.RetryAfter.Milliseconds(), 10),
		})
	}
	if errors.Is(source, signer.ErrInvalidEnvelope) {
		return withErrorInfo(codes.InvalidArgument, economyv1.ReasonInvalidEnvelope, nil)
	}
	if mapping, ok := economyv1.MappingFor(source); ok {
		return withErrorInfo(mapping.Code, mapping.Reason, nil)
	}
	if errors.Is(source, context.Canceled) {
		return status.Error(codes.Canceled, source.Error())
	}
	if errors.Is(source, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, source.Error())
	}
	server.logger.Error("economy request failed", zap.Error(source))
	return status.Error(codes.Internal, source.Error())
}

func withErrorInfo(code codes.Code, reason string, metadata map[string]string) error {
	base := status.New(code, reason)
	detailed, err := base.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   economyv1.ErrorDomain,
		Metadata: metadata,
	})
	if err != nil {
		return base.Err()
	}
	return detailed.Err()
}
