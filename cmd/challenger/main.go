// Command challenger runs the Challenger off-chain component: it samples
// random chunks to challenge and sweeps expired challenges for slashing.
//
// Usage:
//
//	challenger [flags]
//
// Flags:
//
//	--rpc-url           Contract JSON-RPC endpoint
//	--contract          Contract address (hex)
//	--privkey           Signer private key (hex, no 0x)
//	--sample-interval   Sampler tick interval (default: 30s)
//	--sweep-interval    Expiry sweep interval (default: 60s)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pkakelas/poda/internal/challenger"
	"github.com/pkakelas/poda/internal/chain"
	"github.com/pkakelas/poda/internal/cliutil"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := challenger.DefaultConfig()
	fs := flag.NewFlagSet("challenger", flag.ContinueOnError)

	fs.DurationVar(&cfg.SampleInterval, "sample-interval", cfg.SampleInterval, "sampler tick interval")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "expiry sweep interval")
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

	c, err := challenger.New(cfg, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create challenger: %v\n", err)
		return 1
	}
	c.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("received signal %v, shutting down...\n", sig)
	c.Stop()
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
