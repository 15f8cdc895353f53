package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const defaultSecretKeyBytes = 32

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

// Print random hex secret, optionally as SECRET_KEY line for .env file
func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	n := fs.IntP("bytes", "n", defaultSecretKeyBytes, "Secret length in bytes")
	asEnv := fs.Bool("env", false, "Print as SECRET_KEY=... line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 16 {
		return fmt.Errorf("secret must be at least 16 bytes, got %d", *n)
	}

	b := make([]byte, *n)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	secret := hex.EncodeToString(b)
	if *asEnv {
		secret = "SECRET_KEY=" + secret
	}

	_, err := fmt.Fprintln(out, secret)
	return err
}
