// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/graftvc/graft/lib/checksum"
	"github.com/graftvc/graft/lib/sealed"
)

// PristineCheckMode selects which half of "is this pristine present"
// [DB.PristineCheck] answers.
type PristineCheckMode int

const (
	// PristineRowOnly checks only the store's pristine row.
	PristineRowOnly PristineCheckMode = iota
	// PristineFileOnly checks only the on-disk blob.
	PristineFileOnly
	// PristineBoth requires both the row and the file to be present.
	PristineBoth
)

// PristineTempDir returns the absolute path the caller must write a
// plaintext blob to before calling [DB.PristineInstall].
func (db *DB) PristineTempDir() string {
	return filepath.Join(db.adminDir, "tmp")
}

// pristinePath derives the on-disk path for a digest, sharded by the
// first two hex characters so a single directory never holds every
// blob in the store.
func (db *DB) pristinePath(digest checksum.Checksum) string {
	hexDigest := digest.String()
	shard := "xx"
	if colon := indexByte(hexDigest, ':'); colon >= 0 && len(hexDigest) >= colon+3 {
		shard = hexDigest[colon+1 : colon+3]
	}
	return filepath.Join(db.adminDir, "pristine", shard, hexDigest)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// PristineInstall atomically installs a plaintext blob at tempPath
// (which must live in [DB.PristineTempDir] so the final rename is
// same-volume) as the pristine content for digest. The on-disk bytes
// are zstd-compressed, and additionally age-encrypted if the DB was
// opened with seal recipients.
//
// Safe to call with a digest that is already installed: the rename-
// over is tolerated, and the pristine row insert is a no-op in that
// case.
func (db *DB) PristineInstall(tempPath string, digest checksum.Checksum) error {
	plaintext, err := os.ReadFile(tempPath)
	if err != nil {
		return fmt.Errorf("wc: reading pristine temp file %s: %w", tempPath, err)
	}

	compressed, compressionKind := compressPristine(plaintext)

	onDisk := compressed
	encrypted := false
	if len(db.sealRecipients) > 0 {
		ciphertext, err := sealed.Encrypt(compressed, db.sealRecipients)
		if err != nil {
			return fmt.Errorf("wc: encrypting pristine %s: %w", digest, err)
		}
		onDisk = []byte(ciphertext)
		encrypted = true
	}

	finalPath := db.pristinePath(digest)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return fmt.Errorf("wc: creating pristine shard dir: %w", err)
	}

	stagingFile, err := os.CreateTemp(db.PristineTempDir(), "pristine-install-*")
	if err != nil {
		return fmt.Errorf("wc: staging pristine write: %w", err)
	}
	stagingPath := stagingFile.Name()
	if _, err := stagingFile.Write(onDisk); err != nil {
		stagingFile.Close()
		os.Remove(stagingPath)
		return fmt.Errorf("wc: writing staged pristine: %w", err)
	}
	if err := stagingFile.Close(); err != nil {
		os.Remove(stagingPath)
		return fmt.Errorf("wc: closing staged pristine: %w", err)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		os.Remove(stagingPath)
		return fmt.Errorf("wc: installing pristine %s: %w", digest, err)
	}

	err = sqlitex.Execute(db.conn,
		`INSERT OR IGNORE INTO pristine (wc_id, checksum, size, compressed_size, compression, encrypted)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, digest.String(), len(plaintext), len(onDisk), string(compressionKind), boolToInt(encrypted)},
		})
	if err != nil {
		return fmt.Errorf("wc: recording pristine row for %s: %w", digest, err)
	}

	db.logger.Debug("pristine installed", "digest", digest.String(), "size", len(plaintext), "encrypted", encrypted)
	return nil
}

// PristineRead returns the plaintext bytes for digest, reversing
// encryption (if any) and decompression. Fails with
// ErrPristineNotFound if no row exists for digest.
func (db *DB) PristineRead(digest checksum.Checksum) (io.ReadCloser, error) {
	size, compressedSize, compression, encrypted, found, err := db.pristineRow(digest)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("wc: pristine %s: %w", digest, ErrPristineNotFound)
	}

	onDisk, err := os.ReadFile(db.pristinePath(digest))
	if err != nil {
		return nil, fmt.Errorf("wc: reading pristine %s: %w", digest, err)
	}

	compressedData := onDisk
	if encrypted {
		if db.sealPrivateKey == nil {
			return nil, fmt.Errorf("wc: pristine %s is encrypted, no private key configured", digest)
		}
		buffer, err := sealed.Decrypt(string(onDisk), db.sealPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wc: decrypting pristine %s: %w", digest, err)
		}
		defer buffer.Close()
		compressedData = append([]byte(nil), buffer.Bytes()...)
	}

	plaintext, err := decompressPristine(compressedData, CompressionKind(compression), size)
	if err != nil {
		return nil, fmt.Errorf("wc: pristine %s: %w", digest, err)
	}
	if len(onDisk) != compressedSize && compression == string(CompressionNone) {
		// Stored uncompressed but the declared compressed_size drifted
		// from the on-disk size — the invariant from the design ("if a
		// pristine row exists, a file of exactly that size exists")
		// has been violated.
		return nil, fmt.Errorf("wc: pristine %s: stored size mismatch: %w", digest, ErrCorruptStore)
	}

	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

// PristineCheck reports whether digest is present per mode.
func (db *DB) PristineCheck(digest checksum.Checksum, mode PristineCheckMode) (bool, error) {
	_, _, _, _, rowPresent, err := db.pristineRow(digest)
	if err != nil {
		return false, err
	}

	switch mode {
	case PristineRowOnly:
		return rowPresent, nil
	case PristineFileOnly:
		_, err := os.Stat(db.pristinePath(digest))
		return err == nil, nil
	case PristineBoth:
		if !rowPresent {
			return false, nil
		}
		_, err := os.Stat(db.pristinePath(digest))
		return err == nil, nil
	default:
		return false, fmt.Errorf("wc: unknown pristine check mode %d", mode)
	}
}

func (db *DB) pristineRow(digest checksum.Checksum) (size, compressedSize int, compression string, encrypted bool, found bool, err error) {
	err = sqlitex.Execute(db.conn,
		`SELECT size, compressed_size, compression, encrypted FROM pristine WHERE wc_id = ? AND checksum = ?`,
		&sqlitex.ExecOptions{
			Args: []any{db.wcrootID, digest.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				size = stmt.ColumnInt(0)
				compressedSize = stmt.ColumnInt(1)
				compression = stmt.ColumnText(2)
				encrypted = stmt.ColumnInt(3) != 0
				found = true
				return nil
			},
		})
	if err != nil {
		return 0, 0, "", false, false, fmt.Errorf("wc: reading pristine row for %s: %w", digest, err)
	}
	return size, compressedSize, compression, encrypted, found, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
