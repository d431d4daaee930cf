// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net"
	"strings"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"fe80::1", true},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("ParseIP(%q) returned nil", tt.ip)
			}
			if got := IsPrivateIP(ip); got != tt.want {
				t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}

	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) = false, want true (deny by default)")
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"http scheme", "http://push.example.com/ep", "https scheme"},
		{"no hostname", "https://", "hostname"},
		{"localhost", "https://localhost/ep", "localhost"},
		{"localhost subdomain", "https://push.localhost/ep", "localhost"},
		{"private ip", "https://192.168.1.10/ep", "private or reserved"},
		{"loopback ip", "https://127.0.0.1/ep", "private or reserved"},
		{"too long", "https://push.example.com/" + strings.Repeat("a", MaxEndpointURLLength), "maximum length"},
		{"raw public ip", "https://8.8.8.8/ep", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateEndpointURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateEndpointURL(%q) = %v, want error containing %q", tt.url, err, tt.wantErr)
			}
		})
	}
}
