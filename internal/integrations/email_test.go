package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybernus/license-api/internal/domain/notification"
	"github.com/kybernus/license-api/internal/pkg/logger"
)

func TestResendSender_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer re_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"statusCode":401,"message":"bad key","name":"validation_error"}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	sender := NewResendSender("re_test", "Kybernus <noreply@kybernus.test>")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	sender.client.BaseURL = base

	err = sender.Send(context.Background(), &notification.Message{
		Kind:    notification.KindWelcome,
		To:      "dev@example.com",
		Subject: "Welcome",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Kybernus <noreply@kybernus.test>", got["from"])
	assert.Equal(t, []interface{}{"dev@example.com"}, got["to"])
	assert.Equal(t, "Welcome", got["subject"])

	bad := NewResendSender("re_wrong", "x@kybernus.test")
	bad.client.BaseURL = base
	assert.Error(t, bad.Send(context.Background(), &notification.Message{To: "dev@example.com"}))
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(logger.Nop())
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), &notification.Message{To: "dev@example.com"}))
}
