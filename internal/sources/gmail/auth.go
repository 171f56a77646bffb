package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
)

// storedToken accepts both the Go oauth2 token layout and the
// authorized-user layout written by other Google client libraries.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Expiry       string `json:"expiry"`
}

// TokenSource builds a refreshing read-only token source from an OAuth client
// file and a previously saved token. There is no interactive consent flow; the
// token file must already exist.
func TokenSource(ctx context.Context, credentialsFile, tokenFile string) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("TokenSource: read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gm.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("TokenSource: parse credentials: %w", err)
	}

	tok, err := loadToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("TokenSource: %w", err)
	}
	return cfg.TokenSource(ctx, tok), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return parseToken(b)
}

func parseToken(b []byte) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	if st.Expiry != "" {
		// An unparseable expiry leaves the token expired so it gets refreshed.
		if t, err := time.Parse(time.RFC3339Nano, st.Expiry); err == nil {
			tok.Expiry = t
		} else if t, err := time.Parse("2006-01-02T15:04:05.999999", st.Expiry); err == nil {
			tok.Expiry = t.UTC()
		} else {
			tok.Expiry = time.Unix(1, 0)
		}
	}
	return tok, nil
}
