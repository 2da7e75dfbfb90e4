// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package checksum provides the content-digest type shared by the
// pristine object store and the BASE/WORKING node rows: a [Kind]
// (currently "sha1" or "blake3") paired with the raw digest bytes,
// formatted as "{kind}:{hex}" text for storage and display.
//
// A [Checksum] is the key the pristine store addresses blobs by and
// the value a BASE file row carries to identify its content. Two
// kinds are supported side by side so existing stores (sha1, matching
// the checksum format legacy working copies were seeded with) and new
// installs (blake3, faster and not yet showing collision pressure at
// the sizes a single working copy reaches) both round-trip through
// the same text encoding without a schema change.
//
// [Checksum] implements encoding.TextMarshaler/TextUnmarshaler so it
// serializes as plain "{kind}:{hex}" text through lib/codec's CBOR
// mode and through JSON CLI output alike.
package checksum
