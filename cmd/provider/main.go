// Command provider runs a Storage Provider: it accepts chunk PUTs, serves
// retrieval, attests availability on-chain, and responds to challenges.
//
// Usage:
//
//	provider [flags]
//
// Flags:
//
//	--listen    HTTP listen address (default: :8081)
//	--datadir   Badger store directory (default: ./data/provider)
//	--address   This provider's on-chain identity
//	--rpc-url   Contract JSON-RPC endpoint
//	--contract  Contract address (hex)
//	--privkey   Signer private key (hex, no 0x)
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/cliutil"
	"github.com/pkakelas/poda/internal/provider"
	"github.com/pkakelas/poda/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := provider.DefaultConfig()
	fs := flag.NewFlagSet("provider", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "badger store directory")
	fs.StringVar(&cfg.Address, "address", cfg.Address, "this provider's on-chain identity")
	rpcURL := fs.String("rpc-url", "", "Contract JSON-RPC endpoint")
	contractAddr := fs.String("contract", "", "Contract address (hex)")
	privKeyHex := fs.String("privkey", "", "signer private key (hex)")
	chainID := fs.Int64("chainid", 1, "chain ID for transaction signing")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	client, err := dialChain(*rpcURL, *contractAddr, *privKeyHex, *chainID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to contract: %v\n", err)
		return 1
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		return 1
	}
	defer st.Close()

	p, err := provider.New(cfg, client, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create provider: %v\n", err)
		return 1
	}
	p.Start()
	defer p.Stop()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: p.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			return 1
		}
	case sig := <-sigCh:
		fmt.Printf("received signal %v, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
			return 1
		}
	}
	return 0
}

func dialChain(rpcURL, contractAddr, privKeyHex string, chainID int64) (chain.Client, error) {
	if rpcURL == "" || contractAddr == "" || privKeyHex == "" {
		return nil, fmt.Errorf("--rpc-url, --contract, and --privkey are required")
	}
	key, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	txOpts, err := cliutil.BindTransactor(key, chainID)
	if err != nil {
		return nil, err
	}
	return chain.Dial(context.Background(), rpcURL, gethcommon.HexToAddress(contractAddr), txOpts)
}
