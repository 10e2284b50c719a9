// Command keyencrypt turns a hex private key into the encrypted keyfile read
// by wallet.encrypted_key_path.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/parzival1821/CredBook/internal/crypto"
)

var stdin = bufio.NewReader(os.Stdin)

func main() {
	out := flag.String("out", "key.json", "output keyfile path")
	flag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "keyencrypt: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("encrypted key written to %s\n", *out)
}

func run(out string) error {
	key, err := prompt("Private key (hex): ")
	if err != nil {
		return err
	}
	password, err := prompt("Password: ")
	if err != nil {
		return err
	}
	confirm, err := prompt("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	data, err := crypto.EncryptKey(key, password)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o600)
}

// prompt reads a line without echo when stdin is a terminal.
func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
