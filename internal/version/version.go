// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version carries release metadata stamped in at build time.
package version

// Info identifies a build. The fields are populated by main from
// ldflags and default to development placeholders otherwise.
type Info struct {
	Version   string // release tag, e.g. "v1.2.3"
	GitCommit string // short commit hash
	BuildTime string // RFC3339 build timestamp
}
