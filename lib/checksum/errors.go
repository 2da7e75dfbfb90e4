// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import "errors"

// ErrUnsupportedKind is returned (wrapped) by [Parse] when the
// "{kind}:" prefix does not name a kind this package implements. The
// wc package surfaces this as its bad-checksum-kind error.
var ErrUnsupportedKind = errors.New("unsupported checksum kind")

// ErrMalformed is returned (wrapped) by [Parse] when the text is not
// "{kind}:{hex}" shaped or the hex portion does not decode to the
// expected digest length. The wc package surfaces this as its
// corrupt-checksum error.
var ErrMalformed = errors.New("malformed checksum text")
