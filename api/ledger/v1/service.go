package ledgerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	LedgerService_ServiceName                  = "unitledger.ledger.v1.LedgerService"
	LedgerService_CreateAccount_FullMethodName = "/" + LedgerService_ServiceName + "/CreateAccount"
	LedgerService_GetAccount_FullMethodName    = "/" + LedgerService_ServiceName + "/GetAccount"
	LedgerService_Credit_FullMethodName        = "/" + LedgerService_ServiceName + "/Credit"
	LedgerService_Debit_FullMethodName         = "/" + LedgerService_ServiceName + "/Debit"
	LedgerService_Transfer_FullMethodName      = "/" + LedgerService_ServiceName + "/Transfer"
	LedgerService_ListLogs_FullMethodName      = "/" + LedgerService_ServiceName + "/ListLogs"
	LedgerService_VerifyFunds_FullMethodName   = "/" + LedgerService_ServiceName + "/VerifyFunds"
)

// LedgerServiceServer is the server API for LedgerService.
type LedgerServiceServer interface {
	CreateAccount(context.Context, *CreateAccountRequest) (*Account, error)
	GetAccount(context.Context, *GetAccountRequest) (*Account, error)
	Credit(context.Context, *CreditRequest) (*Account, error)
	Debit(context.Context, *DebitRequest) (*Account, error)
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	ListLogs(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
	VerifyFunds(context.Context, *VerifyFundsRequest) (*VerifyFundsResponse, error)
}

// UnimplementedLedgerServiceServer can be embedded for forward compatibility.
type UnimplementedLedgerServiceServer struct{}

func (UnimplementedLedgerServiceServer) CreateAccount(context.Context, *CreateAccountRequest) (*Account, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAccount not implemented")
}

func (UnimplementedLedgerServiceServer) GetAccount(context.Context, *GetAccountRequest) (*Account, error) {
	return nil, status.Error(codes.Unimplemented, "method GetAccount not implemented")
}

func (UnimplementedLedgerServiceServer) Credit(context.Context, *CreditRequest) (*Account, error) {
	return nil, status.Error(codes.Unimplemented, "method Credit not implemented")
}

func (UnimplementedLedgerServiceServer) Debit(context.Context, *DebitRequest) (*Account, error) {
	return nil, status.Error(codes.Unimplemented, "method Debit not implemented")
}

func (UnimplementedLedgerServiceServer) Transfer(context.Context, *TransferRequest) (*TransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Transfer not implemented")
}

func (UnimplementedLedgerServiceServer) ListLogs(context.Context, *ListLogsRequest) (*ListLogsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListLogs not implemented")
}

func (UnimplementedLedgerServiceServer) VerifyFunds(context.Context, *VerifyFundsRequest) (*VerifyFundsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyFunds not implemented")
}

// RegisterLedgerServiceServer attaches srv to registrar.
func RegisterLedgerServiceServer(registrar grpc.ServiceRegistrar, srv LedgerServiceServer) {
	registrar.RegisterService(&LedgerService_ServiceDesc, srv)
}

// unaryHandler adapts one typed server method to grpc.MethodHandler.
func unaryHandler[Request any, Response any](fullMethod string, call func(LedgerServiceServer, context.Context, *Request) (*Response, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Request)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Request))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerService_ServiceDesc describes LedgerService for grpc.ServiceRegistrar.
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerService_ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAccount", Handler: unaryHandler(LedgerService_CreateAccount_FullMethodName, LedgerServiceServer.CreateAccount)},
		{MethodName: "GetAccount", Handler: unaryHandler(LedgerService_GetAccount_FullMethodName, LedgerServiceServer.GetAccount)},
		{MethodName: "Credit", Handler: unaryHandler(LedgerService_Credit_FullMethodName, LedgerServiceServer.Credit)},
		{MethodName: "Debit", Handler: unaryHandler(LedgerService_Debit_FullMethodName, LedgerServiceServer.Debit)},
		{MethodName: "Transfer", Handler: unaryHandler(LedgerService_Transfer_FullMethodName, LedgerServiceServer.Transfer)},
		{MethodName: "ListLogs", Handler: unaryHandler(LedgerService_ListLogs_FullMethodName, LedgerServiceServer.ListLogs)},
		{MethodName: "VerifyFunds", Handler: unaryHandler(LedgerService_VerifyFunds_FullMethodName, LedgerServiceServer.VerifyFunds)},
	},
	Streams: []grpc.StreamDesc{},
}

// LedgerServiceClient is the client API for LedgerService.
type LedgerServiceClient interface {
	CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*Account, error)
	GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*Account, error)
	Credit(ctx context.Context, in *CreditRequest, opts ...grpc.CallOption) (*Account, error)
	Debit(ctx context.Context, in *DebitRequest, opts ...grpc.CallOption) (*Account, error)
	Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error)
	ListLogs(ctx context.Context, in *ListLogsRequest, opts ...grpc.CallOption) (*ListLogsResponse, error)
	VerifyFunds(ctx context.Context, in *VerifyFundsRequest, opts ...grpc.CallOption) (*VerifyFundsResponse, error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerServiceClient returns a client that sends every call with the JSON codec.
func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc: cc}
}

func invoke[Response any](ctx context.Context, cc grpc.ClientConnInterface, fullMethod string, in any, opts []grpc.CallOption) (*Response, error) {
	out := new(Response)
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod, in, out, callOptions...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, LedgerService_CreateAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, LedgerService_GetAccount_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Credit(ctx context.Context, in *CreditRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, LedgerService_Credit_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Debit(ctx context.Context, in *DebitRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, LedgerService_Debit_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, LedgerService_Transfer_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) ListLogs(ctx context.Context, in *ListLogsRequest, opts ...grpc.CallOption) (*ListLogsResponse, error) {
	return invoke[ListLogsResponse](ctx, c.cc, LedgerService_ListLogs_FullMethodName, in, opts)
}

func (c *ledgerServiceClient) VerifyFunds(ctx context.Context, in *VerifyFundsRequest, opts ...grpc.CallOption) (*VerifyFundsResponse, error) {
	return invoke[VerifyFundsResponse](ctx, c.cc, LedgerService_VerifyFunds_FullMethodName, in, opts)
}
