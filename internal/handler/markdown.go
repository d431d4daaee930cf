// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// htmlSanitizer strips unsafe HTML from rendered markdown.
// UGCPolicy allows the safe tag set for user-generated content.
var htmlSanitizer = bluemonday.UGCPolicy()

// renderMarkdown converts transaction notes from markdown to sanitized HTML.
// On conversion failure the raw text is returned escaped.
func renderMarkdown(source string) template.HTML {
	if source == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return template.HTML(template.HTMLEscapeString(source))
	}

	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}
