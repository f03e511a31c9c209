// Command dispenser runs the Dispenser off-chain component: it ingests
// blobs, erasure-codes and commits them, and serves retrieval.
//
// Usage:
//
//	dispenser [flags]
//
// Flags:
//
//	--listen        HTTP listen address (default: :8080)
//	--rpc-url       Contract JSON-RPC endpoint
//	--contract      Contract address (hex)
//	--privkey       Signer private key (hex, no 0x)
//	--n             Total chunks per commitment (default: 24)
//	--k             Minimum chunks to reconstruct (default: 16)
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
	"github.com/pkakelas/poda/internal/dispenser"
	"github.com/pkakelas/poda/internal/kzgcommit"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := dispenser.DefaultConfig()
	fs := flag.NewFlagSet("dispenser", flag.ContinueOnError)

	listen := fs.String("listen", cfg.ListenAddr, "HTTP listen address")
	rpcURL := fs.String("rpc-url", "", "Contract JSON-RPC endpoint")
	contractAddr := fs.String("contract", "", "Contract address (hex)")
	privKeyHex := fs.String("privkey", "", "signer private key (hex)")
	chainID := fs.Int64("chainid", 1, "chain ID for transaction signing")
	n := fs.Int("n", int(cfg.N), "total chunks per commitment")
	k := fs.Int("k", int(cfg.K), "minimum chunks to reconstruct")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	cfg.ListenAddr = *listen
	cfg.N, cfg.K = uint16(*n), uint16(*k)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	if err := kzgcommit.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load trusted setup: %v\n", err)
		return 1
	}

	client, err := dialChain(*rpcURL, *contractAddr, *privKeyHex, *chainID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to contract: %v\n", err)
		return 1
	}

	d, err := dispenser.New(cfg, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create dispenser: %v\n", err)
		return 1
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: d.Handler()}
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
