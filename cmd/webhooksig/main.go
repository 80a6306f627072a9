// Command webhooksig generates tenant signing secrets and signs or verifies
// webhook bodies the way the dispatcher does.
//
//	webhooksig gen
//	webhooksig sign <secret> <file|->
//	webhooksig verify <secret> <signature> <file|->
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/webhook"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: webhooksig gen | sign <secret> <file> | verify <secret> <signature> <file>")
	}

	switch args[0] {
	case "gen":
		secret, err := webhook.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, secret)
		return nil

	case "sign":
		if len(args) != 3 {
			return errors.New("usage: webhooksig sign <secret> <file>")
		}
		body, err := readBody(args[2], stdin)
		if err != nil {
			return err
		}
		if args[1] == "" {
			return errors.New("secret must not be empty")
		}
		fmt.Fprintln(stdout, webhook.SignPayload(body, args[1]))
		return nil

	case "verify":
		if len(args) != 4 {
			return errors.New("usage: webhooksig verify <secret> <signature> <file>")
		}
		body, err := readBody(args[3], stdin)
		if err != nil {
			return err
		}
		if !webhook.VerifySignature(body, args[2], args[1]) {
			return errors.New("signature mismatch")
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
