// Copyright (c) 2025-2026 OpenLedger Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"encoding/json"
	"testing"
)

func TestParsePayloadDefaults(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Notification
	}{
		{
			name: "empty input gets full defaults",
			raw:  "",
			expected: Notification{
				Title: DefaultTitle,
				Body:  DefaultBody,
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{},
			},
		},
		{
			name: "empty object gets full defaults",
			raw:  `{}`,
			expected: Notification{
				Title: DefaultTitle,
				Body:  DefaultBody,
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{},
			},
		},
		{
			name: "partial payload defaults only missing fields",
			raw:  `{"title":"Budget alert","body":"Groceries is at 90%"}`,
			expected: Notification{
				Title: "Budget alert",
				Body:  "Groceries is at 90%",
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{},
			},
		},
		{
			name: "explicit empty string is preserved",
			raw:  `{"title":"","body":""}`,
			expected: Notification{
				Title: "",
				Body:  "",
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{},
			},
		},
		{
			name: "unparsable input gets full defaults",
			raw:  `{not json`,
			expected: Notification{
				Title: DefaultTitle,
				Body:  DefaultBody,
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{},
			},
		},
		{
			name: "data is carried through",
			raw:  `{"data":{"url":"/transactions"}}`,
			expected: Notification{
				Title: DefaultTitle,
				Body:  DefaultBody,
				Icon:  DefaultIcon,
				Badge: DefaultBadge,
				Data:  map[string]any{"url": "/transactions"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePayload([]byte(tt.raw))

			if got.Title != tt.expected.Title {
				t.Errorf("Title = %q, want %q", got.Title, tt.expected.Title)
			}
			if got.Body != tt.expected.Body {
				t.Errorf("Body = %q, want %q", got.Body, tt.expected.Body)
			}
			if got.Icon != tt.expected.Icon {
				t.Errorf("Icon = %q, want %q", got.Icon, tt.expected.Icon)
			}
			if got.Badge != tt.expected.Badge {
				t.Errorf("Badge = %q, want %q", got.Badge, tt.expected.Badge)
			}
			if got.Data == nil {
				t.Fatal("Data must never be nil")
			}
			if len(got.Data) != len(tt.expected.Data) {
				t.Errorf("Data = %v, want %v", got.Data, tt.expected.Data)
			}
			for k, v := range tt.expected.Data {
				if got.Data[k] != v {
					t.Errorf("Data[%q] = %v, want %v", k, got.Data[k], v)
				}
			}
		})
	}
}

func TestNotificationEncodeRoundTrip(t *testing.T) {
	n := Notification{
		Title: "Title",
		Body:  "Body",
		Icon:  "/icon.png",
		Badge: "/badge.png",
		Data:  map[string]any{"url": "/"},
	}

	var decoded map[string]any
	if err := json.Unmarshal(n.Encode(), &decoded); err != nil {
		t.Fatalf("Encode produced invalid JSON: %v", err)
	}

	if decoded["title"] != "Title" || decoded["body"] != "Body" {
		t.Errorf("unexpected encoded payload: %v", decoded)
	}
}
