// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for pristine
// blobs stored at rest. It wraps filippo.io/age for the specific
// operations graft needs: generate x25519 keypairs, encrypt to
// multiple recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded so it can travel through text-oriented
// storage paths unchanged. Callers pass plaintext []byte to [Encrypt]
// and receive a base64 string; [Decrypt] accepts a base64 string and
// returns plaintext. Private keys and decrypted plaintext are returned
// as [secret.Buffer] values backed by mmap memory outside the Go heap
// (locked against swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] / [EncryptJSON] -- encrypt to age public key recipients
//   - [Decrypt] / [DecryptJSON] -- decrypt with a secret.Buffer key
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// A working copy opened with one or more seal recipients configured
// encrypts every pristine blob it installs to those recipients; a
// working copy opened with the matching private key transparently
// decrypts on read. See lib/wc's pristine store for the wiring.
//
// Depends on lib/secret for secure memory allocation.
package sealed
