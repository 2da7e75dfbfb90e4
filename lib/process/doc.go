// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for graft's CLI
// binaries (cmd/graft-admin, cmd/graft-browse). These functions
// centralize the one legitimate raw I/O pattern that exists before a
// structured logger is configured: fatal error reporting to stderr
// and process exit from main().
package process
