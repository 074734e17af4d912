package pagination

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("PageSize = %d, want %d", params.PageSize, DefaultPageSize)
	}
	if params.PageToken != "" || !params.Cursor.IsZero() {
		t.Fatalf("expected empty token and cursor, got %+v", params)
	}
}

func TestParsePageSize(t *testing.T) {
	values := url.Values{"pageSize": {"7"}}
	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if params.PageSize != 7 {
		t.Fatalf("PageSize = %d, want 7", params.PageSize)
	}

	capped, err := Parse(url.Values{"pageSize": {"500"}}, Options{MaxPageSize: 50})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if capped.PageSize != 50 {
		t.Fatalf("PageSize = %d, want capped at 50", capped.PageSize)
	}

	if _, err := Parse(url.Values{"pageSize": {"0"}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize for zero, got %v", err)
	}
	if _, err := Parse(url.Values{"pageSize": {"abc"}}, Options{}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize for non-integer, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		ID:        "ORD-1001",
	}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken error: %v", err)
	}
	if !decoded.CreatedAt.Equal(cursor.CreatedAt) || decoded.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil || token != "" {
		t.Fatalf("expected empty token, got %q err %v", token, err)
	}
}

func TestParseRejectsBadToken(t *testing.T) {
	if _, err := Parse(url.Values{"pageToken": {"%%%not-base64"}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestMust(t *testing.T) {
	params := Must(Params{})
	if params.PageSize != DefaultPageSize {
		t.Fatalf("Must PageSize = %d, want %d", params.PageSize, DefaultPageSize)
	}
}
