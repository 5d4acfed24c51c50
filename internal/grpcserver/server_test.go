package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	economyv1 "github.com/MarkoPoloResearchLab/focusledger/api/economy/v1"
	"github.com/MarkoPoloResearchLab/focusledger/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const (
	bufconnSize          = 1 << 20
	baseNowMillis  int64 = 1_700_000_000_000
	testNetwork          = "focus-grpcnet"
	testGasPerCall       = uint64(1_000)
	userSeedHex          = "0101010101010101010101010101010101010101010101010101010101010101"
	adminSeedHex         = "0202020202020202020202020202020202020202020202020202020202020202"
)

type stubLimiter struct {
	err  error
	keys []string
}

func (limiter *stubLimiter) Allow(_ context.Context, key string) error {
	limiter.keys = append(limiter.keys, key)
	return limiter.err
}

type grpcFixture struct {
	client economyv1.EconomyServiceClient
	user   *signer.Signer
}

func newGRPCFixture(test *testing.T, sessionLimit uint32, options ...Option) grpcFixture {
	test.Helper()
	user, err := signer.FromSeedHex(userSeedHex)
	if err != nil {
		test.Fatalf("user signer: %v", err)
	}
	admin, err := signer.FromSeedHex(adminSeedHex)
	if err != nil {
		test.Fatalf("admin signer: %v", err)
	}
	service, err := economy.NewService(memstore.New(), func() int64 { return baseNowMillis },
		economy.WithNetwork(testNetwork),
		economy.WithGasPerCall(testGasPerCall),
	)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	genesis := economy.DefaultGenesis(admin.Address())
	genesis.TreasuryBalance = economy.Amount(50 * economy.TokenScale)
	genesis.DailySessionLimit = sessionLimit
	genesis.Allocations = []economy.Allocation{{Address: user.Address(), Gas: 100 * testGasPerCall}}
	if err := service.Bootstrap(context.Background(), genesis); err != nil {
		test.Fatalf("bootstrap failed: %v", err)
	}

	listener := bufconn.Listen(bufconnSize)
	grpcServer := grpc.NewServer()
	economyv1.RegisterEconomyServiceServer(grpcServer, NewEconomyServiceServer(service, options...))
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			test.Logf("gRPC server error: %v", serveErr)
		}
	}()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		test.Fatalf("gRPC client init failed: %v", err)
	}
	test.Cleanup(func() {
		grpcServer.Stop()
		_ = conn.Close()
	})
	return grpcFixture{client: economyv1.NewEconomyServiceClient(conn), user: user}
}

func (fixture grpcFixture) signClaim(test *testing.T, key string) signer.Envelope {
	test.Helper()
	envelope, err := fixture.user.Sign(context.Background(), economy.Call{Kind: economy.CallClaimSessionReward, IdempotencyKey: key}, testNetwork, testGasPerCall)
	if err != nil {
		test.Fatalf("sign: %v", err)
	}
	return envelope
}

func requestContext(test *testing.T) context.Context {
	test.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	test.Cleanup(cancel)
	return ctx
}

func errorInfo(test *testing.T, err error) (codes.Code, *errdetails.ErrorInfo) {
	test.Helper()
	statusValue, ok := status.FromError(err)
	if !ok {
		test.Fatalf("expected gRPC status, got %v", err)
	}
	for _, detail := range statusValue.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return statusValue.Code(), info
		}
	}
	test.Fatalf("expected ErrorInfo detail on %v", err)
	return codes.Unknown, nil
}

func TestSubmitClaimAndReplayOverGRPC(test *testing.T) {
	test.Parallel()
	fixture := newGRPCFixture(test, economy.DefaultDailySessionLimit)
	ctx := requestContext(test)

	network, err := fixture.client.GetNetwork(ctx, &economyv1.GetNetworkRequest{})
	if err != nil {
		test.Fatalf("network: %v", err)
	}
	if network.Network != testNetwork || network.GasPerCall != testGasPerCall {
		test.Fatalf("unexpected network: %+v", network)
	}

	envelope := fixture.signClaim(test, "session-1")
	first, err := fixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: envelope.Token})
	if err != nil {
		test.Fatalf("submit: %v", err)
	}
	if first.Transaction.Digest != envelope.Digest || first.Transaction.Effects.Payout == nil {
		test.Fatalf("unexpected transaction: %+v", first.Transaction)
	}
	if first.Transaction.Effects.Payout.Amount != economy.DefaultSessionReward {
		test.Fatalf("expected one token payout, got %d", first.Transaction.Effects.Payout.Amount)
	}

	second, err := fixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: envelope.Token})
	if err != nil {
		test.Fatalf("resubmit: %v", err)
	}
	if second.Transaction.Digest != first.Transaction.Digest || second.Transaction.ExecutedUnixMilli != first.Transaction.ExecutedUnixMilli {
		test.Fatalf("expected the recorded transaction on resubmit")
	}

	payout, err := fixture.client.GetPayout(ctx, &economyv1.GetPayoutRequest{Address: fixture.user.Address().String(), IdempotencyKey: "session-1"})
	if err != nil {
		test.Fatalf("payout: %v", err)
	}
	if payout.Payout.TransactionDigest != envelope.Digest {
		test.Fatalf("expected payout bound to digest, got %q", payout.Payout.TransactionDigest)
	}
	account, err := fixture.client.GetAccount(ctx, &economyv1.GetAccountRequest{Address: fixture.user.Address().String()})
	if err != nil {
		test.Fatalf("account: %v", err)
	}
	if account.Account.TokenBalance != economy.DefaultSessionReward || account.Account.GasBalance != 99*testGasPerCall {
		test.Fatalf("unexpected account: %+v", account.Account)
	}
}

func TestSubmitMapsFailuresToStableReasons(test *testing.T) {
	test.Parallel()
	limited := &stubLimiter{err: &ratelimit.LimitedError{Key: "sender", RetryAfter: 1500 * time.Millisecond}}
	limitedFixture := newGRPCFixture(test, economy.DefaultDailySessionLimit, WithSubmitLimiter(limited))
	ctx := requestContext(test)

	_, err := limitedFixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: limitedFixture.signClaim(test, "limited").Token})
	code, info := errorInfo(test, err)
	if code != codes.ResourceExhausted || info.Reason != economyv1.ReasonRateLimited {
		test.Fatalf("expected rate limited, got %v %s", code, info.Reason)
	}
	if info.Metadata[economyv1.MetadataRetryAfter] != "1500" {
		test.Fatalf("expected retry hint, got %v", info.Metadata)
	}
	if len(limited.keys) != 1 || limited.keys[0] != limitedFixture.user.Address().String() {
		test.Fatalf("expected the limiter keyed by sender, got %v", limited.keys)
	}

	fixture := newGRPCFixture(test, 1)
	_, err = fixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: "not-a-token"})
	code, info = errorInfo(test, err)
	if code != codes.InvalidArgument || info.Reason != economyv1.ReasonInvalidEnvelope || info.Domain != economyv1.ErrorDomain {
		test.Fatalf("expected invalid envelope, got %v %+v", code, info)
	}

	if _, err := fixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: fixture.signClaim(test, "first").Token}); err != nil {
		test.Fatalf("first claim: %v", err)
	}
	_, err = fixture.client.Submit(ctx, &economyv1.SubmitRequest{Token: fixture.signClaim(test, "second").Token})
	code, info = errorInfo(test, err)
	if code != codes.FailedPrecondition || info.Reason != string(economy.RuleSessionLimit) {
		test.Fatalf("expected session limit violation, got %v %s", code, info.Reason)
	}
	if info.Metadata[economyv1.MetadataLimit] != "1" || info.Metadata[economyv1.MetadataRemaining] != "0" {
		test.Fatalf("unexpected violation metadata: %v", info.Metadata)
	}

	_, err = fixture.client.GetTransaction(ctx, &economyv1.GetTransactionRequest{Digest: "missing"})
	code, info = errorInfo(test, err)
	if code != codes.NotFound || info.Reason != economyv1.ReasonUnknownTransaction {
		test.Fatalf("expected unknown transaction, got %v %s", code, info.Reason)
	}
}

func TestMapToGRPCError(test *testing.T) {
	test.Parallel()
	server := NewEconomyServiceServer(nil)
	testCases := []struct {
		name         string
		source       error
		expectedCode codes.Code
		reason       string
	}{
		{name: "invalid address", source: economy.ErrInvalidAddress, expectedCode: codes.InvalidArgument, reason: economyv1.ReasonInvalidAddress},
		{name: "wrapped not owner", source: economy.WrapError("feed_pet", "pet", "owner", economy.ErrNotOwner), expectedCode: codes.PermissionDenied, reason: economyv1.ReasonNotOwner},
		{name: "stale", source: fmt.Errorf("save: %w", economy.ErrStaleObject), expectedCode: codes.Aborted, reason: economyv1.ReasonStaleObject},
		{name: "insufficient funds", source: economy.ErrInsufficientFunds, expectedCode: codes.FailedPrecondition, reason: economyv1.ReasonInsufficientFunds},
		{name: "duplicate key", source: economy.ErrDuplicateIdempotencyKey, expectedCode: codes.AlreadyExists, reason: economyv1.ReasonDuplicateKey},
		{name: "faucet cooldown", source: economy.ErrFaucetCooldown, expectedCode: codes.ResourceExhausted, reason: economyv1.ReasonFaucetCooldown},
		{name: "daily cap", source: &economy.RuleViolation{Rule: economy.RuleDailyCap, Limit: 100}, expectedCode: codes.FailedPrecondition, reason: string(economy.RuleDailyCap)},
		{name: "tampered envelope", source: signer.ErrInvalidEnvelope, expectedCode: codes.InvalidArgument, reason: economyv1.ReasonInvalidEnvelope},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			code, info := errorInfo(test, server.mapToGRPCError(testCase.source))
			if code != testCase.expectedCode || info.Reason != testCase.reason {
				test.Fatalf("expected %v/%s, got %v/%s", testCase.expectedCode, testCase.reason, code, info.Reason)
			}
		})
	}

	unexpected := server.mapToGRPCError(errors.New("disk on fire"))
	if status.Code(unexpected) != codes.Internal {
		test.Fatalf("expected internal, got %v", unexpected)
	}
}
