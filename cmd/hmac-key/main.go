// Command hmac-key prints a random chain-hash signing key as an env line.
//
//	hmac-key >> .env
//	hmac-key -key-id 2026-10 >> .env
package main

import (
	"crypto/rand"
	"flag"
	"os"

	"github.com/louisbranch/eventledger/internal/platform/config"
	"github.com/louisbranch/eventledger/internal/tools/hmackey"
)

func main() {
	cfg, err := hmackey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("hmac-key: %v", err)
	}
	if err := hmackey.Run(cfg, os.Stdout, rand.Reader); err != nil {
		config.Exitf("hmac-key: %v", err)
	}
}
