// Command smartid-token mints development bearer tokens and hashes claims to
// the attribute hashes the API expects.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"smartid/internal/auth/token"
	"smartid/internal/platform/config"
	"smartid/pkg/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}
	switch args[0] {
	case "mint":
		return cmdMint(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "smartid-token: development helpers for the smartid API")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  smartid-token mint --account <0x address> [--ttl 1h]")
	fmt.Fprintln(w, "  smartid-token hash <claim>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "mint signs with JWT_SIGNING_KEY, JWT_ISSUER and JWT_AUDIENCE from the environment.")
}

func cmdMint(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	account := fs.String("account", "", "account address the token speaks for")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	caller, err := domain.ParseAccountID(*account)
	if err != nil {
		fmt.Fprintf(errOut, "mint: %v\n", err)
		return 2
	}
	if *ttl <= 0 {
		fmt.Fprintln(errOut, "mint: --ttl must be positive")
		return 2
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(errOut, "mint: %v\n", err)
		return 1
	}
	if cfg.UsesDefaultSigningKey() {
		fmt.Fprintln(errOut, "warning: signing with the development key")
	}

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	signed, err := tokens.Mint(caller, *ttl)
	if err != nil {
		fmt.Fprintf(errOut, "mint: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, signed)
	return 0
}

func cmdHash(args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, errors.New("hash: expected exactly one claim argument"))
		return 2
	}
	fmt.Fprintln(out, domain.HashOf([]byte(args[0])).String())
	return 0
}
