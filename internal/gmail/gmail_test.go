package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func writeToken(t *testing.T, path string) {
	t.Helper()
	data, err := json.Marshal(&oauth2.Token{
		AccessToken:  "test-access",
		RefreshToken: "test-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name string
		part *gmailapi.MessagePart
		want string
	}{
		{
			name: "single part",
			part: &gmailapi.MessagePart{Body: &gmailapi.MessagePartBody{Data: enc("hello")}},
			want: "hello",
		},
		{
			name: "prefers plain over html",
			part: &gmailapi.MessagePart{Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<b>html</b>")}},
				{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("plain")}},
			}},
			want: "plain",
		},
		{
			name: "html stripped",
			part: &gmailapi.MessagePart{Parts: []*gmailapi.MessagePart{
				{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: enc("<p>Order <b>2</b> mugs</p>")}},
			}},
			want: "Order 2 mugs",
		},
		{
			name: "nested multipart",
			part: &gmailapi.MessagePart{Parts: []*gmailapi.MessagePart{
				{MimeType: "multipart/alternative", Parts: []*gmailapi.MessagePart{
					{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: enc("nested")}},
				}},
			}},
			want: "nested",
		},
		{
			name: "unpadded data",
			part: &gmailapi.MessagePart{Body: &gmailapi.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab"))}},
			want: "ab",
		},
		{
			name: "empty",
			part: &gmailapi.MessagePart{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBody(tt.part))
		})
	}
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage("jane@example.com", "Order Confirmation - Order #12", "Thanks!"))

	assert.True(t, strings.HasPrefix(raw, "To: jane@example.com\r\n"))
	assert.Contains(t, raw, "Subject: Order Confirmation - Order #12\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nThanks!"))
}

func TestAuthenticatorWithoutTokenIsNotAuthenticated(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{TokenPath: filepath.Join(t.TempDir(), "token.json")}, nil)

	assert.False(t, auth.Authenticated())
	_, err := auth.TokenSource(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{
		ClientID:    "client",
		RedirectURL: "http://localhost:8000/auth/google/callback",
	}, nil)

	u := auth.AuthCodeURL("state-1")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=state-1")
}

func TestTokenSourceUsesStoredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, path)
	auth := NewAuthenticator(AuthConfig{TokenPath: path}, nil)

	require.True(t, auth.Authenticated())
	ts, err := auth.TokenSource(context.Background())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "test-access", tok.AccessToken)
}

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, path)
	auth := NewAuthenticator(AuthConfig{TokenPath: path}, nil)
	return NewService(auth, nil, option.WithEndpoint(srv.URL+"/"))
}

func TestFetchUnread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UnreadQuery, r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m1"}},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "m1",
			"threadId": "t1",
			"snippet":  "I would like",
			"payload": map[string]any{
				"headers": []map[string]string{
					{"name": "Subject", "value": "New order"},
					{"name": "From", "value": "Jane <jane@example.com>"},
				},
				"body": map[string]string{"data": enc("I would like productId 3")},
			},
		})
	})

	svc := newTestService(t, mux)
	emails, err := svc.FetchUnread(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, emails, 1)

	e := emails[0]
	assert.Equal(t, "m1", e.ID)
	assert.Equal(t, "t1", e.ThreadID)
	assert.Equal(t, "New order", e.Subject)
	assert.Equal(t, "Jane <jane@example.com>", e.FromEmail)
	assert.Equal(t, "I would like productId 3", e.Body)
}

func TestSendAndMarkAsRead(t *testing.T) {
	var sentRaw string
	var removed []string

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var m gmailapi.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		sentRaw = m.Raw
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "sent-1"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1/modify", func(w http.ResponseWriter, r *http.Request) {
		var req gmailapi.ModifyMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		removed = req.RemoveLabelIds
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "m1"})
	})

	svc := newTestService(t, mux)

	res, err := svc.Send(context.Background(), "jane@example.com", "Hi", "Body")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "sent-1", res.MessageID)

	decoded, err := base64.URLEncoding.DecodeString(sentRaw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "To: jane@example.com")

	require.NoError(t, svc.MarkAsRead(context.Background(), "m1"))
	assert.Equal(t, []string{"UNREAD"}, removed)
}
