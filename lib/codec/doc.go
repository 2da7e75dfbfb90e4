// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides graft's standard CBOR encoding configuration.
//
// graft uses CBOR for every on-disk or in-store blob that is not plain
// bytes: ACTUAL/BASE/WORKING property maps, work-item skeletons, and
// the tree-conflict-victim envelope stored on a parent directory's
// ACTUAL row. JSON is reserved for the admin CLI's human-facing
// output and config files — it never touches the store.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is exactly
// the property the store needs for comparing a freshly computed
// property blob against the one already on a row without a semantic
// diff.
//
// For buffer-oriented operations (property blobs, work-item skeletons):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// codec.RawMessage delays decoding of individual tree-conflict victim
// entries, since their internal grammar is out of scope for this
// store — it only needs to store and return them byte-for-byte.
package codec
