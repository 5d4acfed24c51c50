package economyv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "focusledger.economy.v1.EconomyService"

	EconomyService_GetNetwork_FullMethodName       = "/" + ServiceName + "/GetNetwork"
	EconomyService_Submit_FullMethodName           = "/" + ServiceName + "/Submit"
	EconomyService_GetTransaction_FullMethodName   = "/" + ServiceName + "/GetTransaction"
	EconomyService_GetTreasury_FullMethodName      = "/" + ServiceName + "/GetTreasury"
	EconomyService_GetEconomyConfig_FullMethodName = "/" + ServiceName + "/GetEconomyConfig"
	EconomyService_GetAccount_FullMethodName       = "/" + ServiceName + "/GetAccount"
	EconomyService_GetDailyRecord_FullMethodName   = "/" + ServiceName + "/GetDailyRecord"
	EconomyService_GetPayout_FullMethodName        = "/" + ServiceName + "/GetPayout"
	EconomyService_GetPet_FullMethodName           = "/" + ServiceName + "/GetPet"
	EconomyService_ListPets_FullMethodName         = "/" + ServiceName + "/ListPets"
	EconomyService_ListToys_FullMethodName         = "/" + ServiceName + "/ListToys"
	EconomyService_RequestGas_FullMethodName       = "/" + ServiceName + "/RequestGas"
)

// EconomyServiceServer is the server API for EconomyService.
type EconomyServiceServer interface {
	GetNetwork(context.Context, *GetNetworkRequest) (*GetNetworkResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	GetTransaction(context.Context, *GetTransactionRequest) (*GetTransactionResponse, error)
	GetTreasury(context.Context, *GetTreasuryRequest) (*GetTreasuryResponse, error)
	GetEconomyConfig(context.Context, *GetEconomyConfigRequest) (*GetEconomyConfigResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
	GetDailyRecord(context.Context, *GetDailyRecordRequest) (*GetDailyRecordResponse, error)
	GetPayout(context.Context, *GetPayoutRequest) (*GetPayoutResponse, error)
	GetPet(context.Context, *GetPetRequest) (*GetPetResponse, error)
	ListPets(context.Context, *ListPetsRequest) (*ListPetsResponse, error)
	ListToys(context.Context, *ListToysRequest) (*ListToysResponse, error)
	RequestGas(context.Context, *RequestGasRequest) (*RequestGasResponse, error)
	mustEmbedUnimplementedEconomyServiceServer()
}

// UnimplementedEconomyServiceServer must be embedded by server implementations.
type UnimplementedEconomyServiceServer struct{}

func (UnimplementedEconomyServiceServer) GetNetwork(context.Context, *GetNetworkRequest) (*GetNetworkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetNetwork not implemented")
}
func (UnimplementedEconomyServiceServer) Submit(context.Context, *SubmitRequest) (*SubmitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedEconomyServiceServer) GetTransaction(context.Context, *GetTransactionRequest) (*GetTransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTransaction not implemented")
}
func (UnimplementedEconomyServiceServer) GetTreasury(context.Context, *GetTreasuryRequest) (*GetTreasuryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTreasury not implemented")
}
func (UnimplementedEconomyServiceServer) GetEconomyConfig(context.Context, *GetEconomyConfigRequest) (*GetEconomyConfigResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetEconomyConfig not implemented")
}
func (UnimplementedEconomyServiceServer) GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAccount not implemented")
}
func (UnimplementedEconomyServiceServer) GetDailyRecord(context.Context, *GetDailyRecordRequest) (*GetDailyRecordResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetDailyRecord not implemented")
}
func (UnimplementedEconomyServiceServer) GetPayout(context.Context, *GetPayoutRequest) (*GetPayoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPayout not implemented")
}
func (UnimplementedEconomyServiceServer) GetPet(context.Context, *GetPetRequest) (*GetPetResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPet not implemented")
}
func (UnimplementedEconomyServiceServer) ListPets(context.Context, *ListPetsRequest) (*ListPetsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPets not implemented")
}
func (UnimplementedEconomyServiceServer) ListToys(context.Context, *ListToysRequest) (*ListToysResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListToys not implemented")
}
func (UnimplementedEconomyServiceServer) RequestGas(context.Context, *RequestGasRequest) (*RequestGasResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestGas not implemented")
}
func (UnimplementedEconomyServiceServer) mustEmbedUnimplementedEconomyServiceServer() {}

// RegisterEconomyServiceServer registers the implementation on a gRPC server.
func RegisterEconomyServiceServer(registrar grpc.ServiceRegistrar, server EconomyServiceServer) {
	registrar.RegisterService(&EconomyService_ServiceDesc, server)
}

func unaryHandler[Request any, Response any](fullMethod string, call func(EconomyServiceServer, context.Context, *Request) (*Response, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(Request)
		if err := decode(request); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(server.(EconomyServiceServer), ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: server, FullMethod: fullMethod}
		handler := func(ctx context.Context, request any) (any, error) {
			return call(server.(EconomyServiceServer), ctx, request.(*Request))
		}
		return interceptor(ctx, request, info, handler)
	}
}

// EconomyService_ServiceDesc describes EconomyService for grpc.ServiceRegistrar.
var EconomyService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EconomyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetNetwork", Handler: unaryHandler(EconomyService_GetNetwork_FullMethodName, EconomyServiceServer.GetNetwork)},
		{MethodName: "Submit", Handler: unaryHandler(EconomyService_Submit_FullMethodName, EconomyServiceServer.Submit)},
		{MethodName: "GetTransaction", Handler: unaryHandler(EconomyService_GetTransaction_FullMethodName, EconomyServiceServer.GetTransaction)},
		{MethodName: "GetTreasury", Handler: unaryHandler(EconomyService_GetTreasury_FullMethodName, EconomyServiceServer.GetTreasury)},
		{MethodName: "GetEconomyConfig", Handler: unaryHandler(EconomyService_GetEconomyConfig_FullMethodName, EconomyServiceServer.GetEconomyConfig)},
		{MethodName: "GetAccount", Handler: unaryHandler(EconomyService_GetAccount_FullMethodName, EconomyServiceServer.GetAccount)},
		{MethodName: "GetDailyRecord", Handler: unaryHandler(EconomyService_GetDailyRecord_FullMethodName, EconomyServiceServer.GetDailyRecord)},
		{MethodName: "GetPayout", Handler: unaryHandler(EconomyService_GetPayout_FullMethodName, EconomyServiceServer.GetPayout)},
		{MethodName: "GetPet", Handler: unaryHandler(EconomyService_GetPet_FullMethodName, EconomyServiceServer.GetPet)},
		{MethodName: "ListPets", Handler: unaryHandler(EconomyService_ListPets_FullMethodName, EconomyServiceServer.ListPets)},
		{MethodName: "ListToys", Handler: unaryHandler(EconomyService_ListToys_FullMethodName, EconomyServiceServer.ListToys)},
		{MethodName: "RequestGas", Handler: unaryHandler(EconomyService_RequestGas_FullMethodName, EconomyServiceServer.RequestGas)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "focusledger/economy/v1/economy.json",
}

// EconomyServiceClient is the client API for EconomyService.
type EconomyServiceClient interface {
	GetNetwork(ctx context.Context, in *GetNetworkRequest, opts ...grpc.CallOption) (*GetNetworkResponse, error)
	Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error)
	GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*GetTransactionResponse, error)
	GetTreasury(ctx context.Context, in *GetTreasuryRequest, opts ...grpc.CallOption) (*GetTreasuryResponse, error)
	GetEconomyConfig(ctx context.Context, in *GetEconomyConfigRequest, opts ...grpc.CallOption) (*GetEconomyConfigResponse, error)
	GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error)
	GetDailyRecord(ctx context.Context, in *GetDailyRecordRequest, opts ...grpc.CallOption) (*GetDailyRecordResponse, error)
	GetPayout(ctx context.Context, in *GetPayoutRequest, opts ...grpc.CallOption) (*GetPayoutResponse, error)
	GetPet(ctx context.Context, in *GetPetRequest, opts ...grpc.CallOption) (*GetPetResponse, error)
	ListPets(ctx context.Context, in *ListPetsRequest, opts ...grpc.CallOption) (*ListPetsResponse, error)
	ListToys(ctx context.Context, in *ListToysRequest, opts ...grpc.CallOption) (*ListToysResponse, error)
	RequestGas(ctx context.Context, in *RequestGasRequest, opts ...grpc.CallOption) (*RequestGasResponse, error)
}

type economyServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewEconomyServiceClient returns a client that encodes every call with the JSON codec.
func NewEconomyServiceClient(cc grpc.ClientConnInterface) EconomyServiceClient {
	return &economyServiceClient{cc: cc}
}

func invoke[Response any](ctx context.Context, cc grpc.ClientConnInterface, fullMethod string, in any, opts []grpc.CallOption) (*Response, error) {
	out := new(Response)
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod, in, out, callOptions...); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *economyServiceClient) GetNetwork(ctx context.Context, in *GetNetworkRequest, opts ...grpc.CallOption) (*GetNetworkResponse, error) {
	return invoke[GetNetworkResponse](ctx, client.cc, EconomyService_GetNetwork_FullMethodName, in, opts)
}

func (client *economyServiceClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	return invoke[SubmitResponse](ctx, client.cc, EconomyService_Submit_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetTransaction(ctx context.Context, in *GetTransactionRequest, opts ...grpc.CallOption) (*GetTransactionResponse, error) {
	return invoke[GetTransactionResponse](ctx, client.cc, EconomyService_GetTransaction_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetTreasury(ctx context.Context, in *GetTreasuryRequest, opts ...grpc.CallOption) (*GetTreasuryResponse, error) {
	return invoke[GetTreasuryResponse](ctx, client.cc, EconomyService_GetTreasury_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetEconomyConfig(ctx context.Context, in *GetEconomyConfigRequest, opts ...grpc.CallOption) (*GetEconomyConfigResponse, error) {
	return invoke[GetEconomyConfigResponse](ctx, client.cc, EconomyService_GetEconomyConfig_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error) {
	return invoke[GetAccountResponse](ctx, client.cc, EconomyService_GetAccount_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetDailyRecord(ctx context.Context, in *GetDailyRecordRequest, opts ...grpc.CallOption) (*GetDailyRecordResponse, error) {
	return invoke[GetDailyRecordResponse](ctx, client.cc, EconomyService_GetDailyRecord_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetPayout(ctx context.Context, in *GetPayoutRequest, opts ...grpc.CallOption) (*GetPayoutResponse, error) {
	return invoke[GetPayoutResponse](ctx, client.cc, EconomyService_GetPayout_FullMethodName, in, opts)
}

func (client *economyServiceClient) GetPet(ctx context.Context, in *GetPetRequest, opts ...grpc.CallOption) (*GetPetResponse, error) {
	return invoke[GetPetResponse](ctx, client.cc, EconomyService_GetPet_FullMethodName, in, opts)
}

func (client *economyServiceClient) ListPets(ctx context.Context, in *ListPetsRequest, opts ...grpc.CallOption) (*ListPetsResponse, error) {
	return invoke[ListPetsResponse](ctx, client.cc, EconomyService_ListPets_FullMethodName, in, opts)
}

func (client *economyServiceClient) ListToys(ctx context.Context, in *ListToysRequest, opts ...grpc.CallOption) (*ListToysResponse, error) {
	return invoke[ListToysResponse](ctx, client.cc, EconomyService_ListToys_FullMethodName, in, opts)
}

func (client *economyServiceClient) RequestGas(ctx context.Context, in *RequestGasRequest, opts ...grpc.CallOption) (*RequestGasResponse, error) {
	return invoke[RequestGasResponse](ctx, client.cc, EconomyService_RequestGas_FullMethodName, in, opts)
}
