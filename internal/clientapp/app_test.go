package clientapp

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	economyv1 "github.com/MarkoPoloResearchLab/focusledger/api/economy/v1"
	"github.com/MarkoPoloResearchLab/focusledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/focusledger/internal/signer"
	"github.com/MarkoPoloResearchLab/focusledger/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/focusledger/pkg/economy"
	"google.golang.org/grpc"
)

const (
	testNetwork  = "focus-appnet"
	userSeedHex  = "0505050505050505050505050505050505050505050505050505050505050505"
	adminSeedHex = "0606060606060606060606060606060606060606060606060606060606060606"
)

func startLedger(test *testing.T) string {
	test.Helper()
	user, err := signer.FromSeedHex(userSeedHex)
	if err != nil {
		test.Fatalf("user signer: %v", err)
	}
	admin, err := signer.FromSeedHex(adminSeedHex)
	if err != nil {
		test.Fatalf("admin signer: %v", err)
	}
	service, err := economy.NewService(memstore.New(), func() int64 { return time.Now().UnixMilli() }, economy.WithNetwork(testNetwork))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	genesis := economy.DefaultGenesis(admin.Address())
	genesis.TreasuryBalance = economy.Amount(10 * economy.TokenScale)
	genesis.Allocations = []economy.Allocation{{Address: user.Address(), Gas: 10 * economy.DefaultGasPerCall}}
	if err := service.Bootstrap(context.Background(), genesis); err != nil {
		test.Fatalf("bootstrap: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatalf("listen: %v", err)
	}
	grpcServer := grpc.NewServer()
	economyv1.RegisterEconomyServiceServer(grpcServer, grpcserver.NewEconomyServiceServer(service))
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			test.Logf("gRPC server error: %v", serveErr)
		}
	}()
	test.Cleanup(grpcServer.Stop)
	return listener.Addr().String()
}

func TestOpenWiresClientAgainstLedgerNode(test *testing.T) {
	test.Parallel()
	ledgerAddr := startLedger(test)
	stateDir := test.TempDir()
	keyPath := filepath.Join(stateDir, "wallet.key")
	if err := os.WriteFile(keyPath, []byte(userSeedHex+"\n"), 0o600); err != nil {
		test.Fatalf("write key: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app, err := Open(ctx, Config{
		LedgerAddress:  ledgerAddr,
		LedgerInsecure: true,
		Network:        testNetwork,
		StateDir:       stateDir,
		PollInterval:   5 * time.Millisecond,
	}, nil)
	if err != nil {
		test.Fatalf("open: %v", err)
	}
	defer func() { _ = app.Close() }()

	claim, err := app.Client.ClaimSessionReward(ctx)
	if err != nil {
		test.Fatalf("claim: %v", err)
	}
	if claim.PaidAmount != economy.DefaultSessionReward {
		test.Fatalf("expected one session reward, got %d", claim.PaidAmount)
	}
	if app.Cache.Snapshot().CompletedSessions != 1 {
		test.Fatalf("expected the claim reconciled into the cache")
	}
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		test.Fatalf("read state dir: %v", err)
	}
	if len(entries) < 2 {
		test.Fatalf("expected the state file next to the key, got %d entries", len(entries))
	}
}

func TestOpenFailsWhenLedgerIsUnreachable(test *testing.T) {
	test.Parallel()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		test.Fatalf("listen: %v", err)
	}
	unreachable := listener.Addr().String()
	_ = listener.Close()

	_, err = Open(context.Background(), Config{
		LedgerAddress:  unreachable,
		LedgerInsecure: true,
		LedgerTimeout:  200 * time.Millisecond,
		StateDir:       test.TempDir(),
	}, nil)
	if err == nil {
		test.Fatalf("expected unreachable ledger to fail")
	}
}
