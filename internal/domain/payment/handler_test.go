package payment

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizbirr/quizbirr-api/internal/pkg/chapa"
	providers "github.com/quizbirr/quizbirr-api/internal/pkg/payment"
	"github.com/quizbirr/quizbirr-api/internal/pkg/telebirr"
)

func newWebhookHandler() http.Handler {
	factory := providers.NewProviderFactory(
		providers.NewTelebirrProvider(telebirr.NewClient(telebirr.Config{WebhookSecret: "tb"})),
		providers.NewChapaProvider(chapa.NewClient(chapa.Config{WebhookSecret: "ch"})),
	)
	svc := NewService(nil, nil, nil, nil, nil, factory, nil, URLs{})
	return NewHandler(svc).WebhookRoutes()
}

func TestWebhook_RejectsMissingOrBadSignature(t *testing.T) {
	h := newWebhookHandler()
	body := `{"reference":"DEP-1","status":"success"}`

	tests := []struct {
		name   string
		path   string
		header string
		sig    string
	}{
		{"telebirr missing", "/telebirr", "", ""},
		{"telebirr wrong secret", "/telebirr", "x-telebirr-signature", telebirr.GenerateSignature([]byte(body), "other")},
		{"chapa missing", "/chapa", "", ""},
		{"chapa wrong", "/chapa", "chapa-signature", "00ff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set(tt.header, tt.sig)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestWebhook_ValidSignatureBadPayload(t *testing.T) {
	h := newWebhookHandler()
	body := `{"event":"charge.success","data":{}}`

	for _, header := range []string{"chapa-signature", "x-chapa-signature"} {
		req := httptest.NewRequest(http.MethodPost, "/chapa", strings.NewReader(body))
		req.Header.Set(header, chapa.GenerateSignature([]byte(body), "ch"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, header)
	}
}

func TestWebhook_IgnoresNonSuccessEvents(t *testing.T) {
	h := newWebhookHandler()
	body := `{"reference":"DEP-1","status":"pending"}`

	req := httptest.NewRequest(http.MethodPost, "/telebirr", strings.NewReader(body))
	req.Header.Set("x-signature", telebirr.GenerateSignature([]byte(body), "tb"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event not handled")
}
