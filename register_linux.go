// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package copybit

// The kernel backend is the default on Linux.
import _ "github.com/gogpu/copybit/backend/fimc"
