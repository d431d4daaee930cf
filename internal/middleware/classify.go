// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import "strings"

// Class is the access category of a request path.
type Class int

// Route classes, in evaluation order.
const (
	ClassPublic Class = iota
	ClassAuthAPI
	ClassStatic
	ClassProtected
)

// String returns the class name for logging.
func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassAuthAPI:
		return "auth-api"
	case ClassStatic:
		return "static"
	default:
		return "protected"
	}
}

var (
	publicPrefixes = []string{"/login", "/register", "/invite", "/health"}

	authAPIPrefix = "/api/auth/"

	staticPrefixes = []string{"/static/", "/favicon.ico", "/manifest.webmanifest", "/sw.js"}

	staticSuffixes = []string{
		".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
		".css", ".js", ".mjs", ".map",
		".woff", ".woff2", ".ttf", ".otf",
		".webmanifest",
	}
)

// Classify categorizes a request path. It is a pure function: checks run
// public, then auth-api, then static, and everything else is protected.
// First match wins.
func Classify(path string) Class {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassPublic
		}
	}

	if strings.HasPrefix(path, authAPIPrefix) {
		return ClassAuthAPI
	}

	for _, p := range staticPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassStatic
		}
	}
	for _, s := range staticSuffixes {
		if strings.HasSuffix(path, s) {
			return ClassStatic
		}
	}

	return ClassProtected
}
