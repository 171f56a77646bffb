package gmail

import (
	"bytes"
	"encoding/base64"
	"testing"
	"time"

	gm "google.golang.org/api/gmail/v1"
)

func TestQuery(t *testing.T) {
	got := Query("billing@razorpay.com")
	want := "from:billing@razorpay.com has:attachment filename:pdf"
	if got != want {
		t.Errorf("Query() = %q, want %q", got, want)
	}
}

func TestFirstPDFPart(t *testing.T) {
	nested := &gm.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gm.MessagePart{
			{MimeType: "text/plain", Filename: ""},
			{
				MimeType: "multipart/alternative",
				Parts: []*gm.MessagePart{
					{MimeType: "image/png", Filename: "logo.png"},
					{MimeType: "application/pdf", Filename: "Invoice.PDF", PartId: "1.1"},
				},
			},
			{MimeType: "application/pdf", Filename: "second.pdf", PartId: "2"},
		},
	}

	got := firstPDFPart(nested)
	if got == nil || got.PartId != "1.1" {
		t.Errorf("firstPDFPart() = %+v, want part 1.1", got)
	}

	if got := firstPDFPart(&gm.MessagePart{Parts: []*gm.MessagePart{{Filename: "a.txt"}}}); got != nil {
		t.Errorf("firstPDFPart() = %+v, want nil", got)
	}
	if got := firstPDFPart(nil); got != nil {
		t.Errorf("firstPDFPart(nil) = %+v, want nil", got)
	}
}

func TestDecodeBody(t *testing.T) {
	payload := []byte("%PDF-1.4\n\xff\xfe binary")
	tests := map[string]string{
		"padded":   base64.URLEncoding.EncodeToString(payload),
		"unpadded": base64.RawURLEncoding.EncodeToString(payload),
	}
	for name, enc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := decodeBody(enc)
			if err != nil {
				t.Fatalf("decodeBody() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("decodeBody() = %q, want %q", got, payload)
			}
		})
	}

	if _, err := decodeBody(""); err == nil {
		t.Error("decodeBody(\"\") error = nil, want error")
	}
	if _, err := decodeBody("!!not base64!!"); err == nil {
		t.Error("decodeBody(garbage) error = nil, want error")
	}
}

func TestParseToken(t *testing.T) {
	t.Run("oauth2 layout", func(t *testing.T) {
		tok, err := parseToken([]byte(`{"access_token":"ya29","refresh_token":"1//r","token_type":"Bearer","expiry":"2024-05-01T10:00:00Z"}`))
		if err != nil {
			t.Fatalf("parseToken() error = %v", err)
		}
		if tok.AccessToken != "ya29" || tok.RefreshToken != "1//r" {
			t.Errorf("parseToken() = %+v", tok)
		}
		if !tok.Expiry.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("Expiry = %v", tok.Expiry)
		}
	})

	t.Run("authorized user layout", func(t *testing.T) {
		tok, err := parseToken([]byte(`{"token":"ya29.b","refresh_token":"1//r","client_id":"x","expiry":"2024-05-01T10:00:00.123456Z"}`))
		if err != nil {
			t.Fatalf("parseToken() error = %v", err)
		}
		if tok.AccessToken != "ya29.b" {
			t.Errorf("AccessToken = %q, want ya29.b", tok.AccessToken)
		}
		if tok.Expiry.IsZero() {
			t.Error("Expiry not parsed")
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if _, err := parseToken([]byte(`{}`)); err == nil {
			t.Error("parseToken() error = nil, want error")
		}
	})
}
