// Copyright 2025 Certen Protocol
//
// Operator key CLI. Generates, inspects, and re-encrypts the
// secp256k1 key backing a validator's pkg/identity.Identity.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/certen/sovereign-engine/pkg/identity"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "reencrypt":
		err = runReencrypt(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keygen <generate|show|reencrypt> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  generate   -validator-id -out -password   create a new operator key")
	fmt.Fprintln(os.Stderr, "  show       -in -password                  print the operator's public key")
	fmt.Fprintln(os.Stderr, "  reencrypt  -in -out -password -new-password   change the key's passphrase")
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	validatorID := fs.String("validator-id", "", "validator ID this key identifies")
	out := fs.String("out", "./data/operator.key", "output path for the encrypted key file")
	password := fs.String("password", "", "passphrase to encrypt the key with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *validatorID == "" {
		return fmt.Errorf("-validator-id is required")
	}
	if *password == "" {
		return fmt.Errorf("-password is required")
	}
	if _, err := os.Stat(*out); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", *out)
	}

	id, rawKey, err := identity.Generate(*validatorID)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	defer zero(rawKey)

	encrypted, err := identity.Encrypt(rawKey, *password)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}
	data, err := json.MarshalIndent(encrypted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	fmt.Printf("wrote encrypted operator key to %s\n", *out)
	fmt.Printf("validator id:  %s\n", id.ValidatorID())
	fmt.Printf("public key:    %s\n", id.PublicKeyHex())
	return nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	in := fs.String("in", "./data/operator.key", "path to the encrypted key file")
	password := fs.String("password", "", "passphrase to decrypt the key with")
	validatorID := fs.String("validator-id", "", "validator ID this key identifies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		return fmt.Errorf("-password is required")
	}

	id, err := loadIdentity(*in, *validatorID, *password)
	if err != nil {
		return err
	}

	fmt.Printf("validator id:  %s\n", id.ValidatorID())
	fmt.Printf("public key:    %s\n", id.PublicKeyHex())
	return nil
}

func runReencrypt(args []string) error {
	fs := flag.NewFlagSet("reencrypt", flag.ExitOnError)
	in := fs.String("in", "./data/operator.key", "path to the existing encrypted key file")
	out := fs.String("out", "", "output path for the re-encrypted key file (defaults to -in)")
	validatorID := fs.String("validator-id", "", "validator ID this key identifies")
	password := fs.String("password", "", "current passphrase")
	newPassword := fs.String("new-password", "", "new passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" || *newPassword == "" {
		return fmt.Errorf("-password and -new-password are required")
	}
	if *out == "" {
		*out = *in
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	var encrypted identity.EncryptedKeyFile
	if err := json.Unmarshal(raw, &encrypted); err != nil {
		return fmt.Errorf("parse key file: %w", err)
	}
	rawKey, err := identity.Decrypt(&encrypted, *password)
	if err != nil {
		return fmt.Errorf("decrypt key: %w", err)
	}
	defer zero(rawKey)

	if _, err := identity.New(*validatorID, rawKey); err != nil {
		return fmt.Errorf("validate key: %w", err)
	}

	reEncrypted, err := identity.Encrypt(rawKey, *newPassword)
	if err != nil {
		return fmt.Errorf("re-encrypt key: %w", err)
	}
	data, err := json.MarshalIndent(reEncrypted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	fmt.Printf("re-encrypted key written to %s\n", *out)
	return nil
}

func loadIdentity(path, validatorID, password string) (*identity.Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var encrypted identity.EncryptedKeyFile
	if err := json.Unmarshal(raw, &encrypted); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	rawKey, err := identity.Decrypt(&encrypted, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt key: %w", err)
	}
	defer zero(rawKey)

	return identity.New(validatorID, rawKey)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
