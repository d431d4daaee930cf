package render

import (
	"testing"
	"testing/fstest"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()

	fsys := fstest.MapFS{
		"layouts/base.html": &fstest.MapFile{
			Data: []byte(`{{define "base"}}<html><body>{{block "content" .}}{{end}}</body></html>{{end}}`),
		},
		"layouts/app.html": &fstest.MapFile{
			Data: []byte(`{{define "nav"}}<nav></nav>{{end}}`),
		},
		"app/dashboard.html": &fstest.MapFile{
			Data: []byte(`{{define "content"}}dashboard{{end}}`),
		},
		"auth/login.html": &fstest.MapFile{
			Data: []byte(`{{define "content"}}login{{end}}`),
		},
	}

	r, err := New(Config{TemplatesFS: fsys})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func TestNewParsesTemplates(t *testing.T) {
	r := testRenderer(t)

	for _, name := range []string{"app/dashboard", "auth/login"} {
		if _, ok := r.templates[name]; !ok {
			t.Errorf("template %s not parsed", name)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	r := testRenderer(t)

	tests := []struct {
		cents    int64
		currency string
		expected string
	}{
		{123456, "USD", "$1,234.56"},
		{-123456, "USD", "-$1,234.56"},
		{0, "USD", "$0.00"},
		{5, "USD", "$0.05"},
		{99, "EUR", "€0.99"},
		{100000000, "USD", "$1,000,000.00"},
		{2500, "XYZ", "XYZ 25.00"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := r.FormatMoney(tt.cents, tt.currency)
			if got != tt.expected {
				t.Errorf("FormatMoney(%d, %q) = %q, want %q", tt.cents, tt.currency, got, tt.expected)
			}
		})
	}
}
