package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSessionHandlers_UpdateCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	view, cookies := f.bootstrapSession(t)

	body := `{"items":[{"product_id":5,"quantity":2},{"product_id":6,"variation_id":3,"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/session/cart", strings.NewReader(body))
	req.Header.Set("User-Agent", "shop-web/1.0")
	req.Header.Set(CSRFHeaderName, view.CSRFToken)
	attachCookies(req, cookies)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var updated sessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Len(t, updated.CartItems, 2)
	assert.Equal(t, 2, updated.CartItems["5"].Quantity)
	assert.Equal(t, 1, updated.CartItems["6_3"].Quantity)
}

func TestSessionHandlers_UpdateCartRejectsBadItems(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	view, cookies := f.bootstrapSession(t)

	for _, body := range []string{
		`{"items":[{"product_id":0,"quantity":2}]}`,
		`{"items":[{"product_id":5,"quantity":0}]}`,
		`{"items":[{"product_id":5,"quantity":-1}]}`,
		`{"unknown_field":true}`,
	} {
		req := httptest.NewRequest(http.MethodPut, "/api/session/cart", strings.NewReader(body))
		req.Header.Set("User-Agent", "shop-web/1.0")
		req.Header.Set(CSRFHeaderName, view.CSRFToken)
		attachCookies(req, cookies)
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
	}
}

func TestSessionHandlers_UpdateCartRequiresCSRF(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	_, cookies := f.bootstrapSession(t)

	body := `{"items":[{"product_id":5,"quantity":2}]}`

	// No token at all.
	req := httptest.NewRequest(http.MethodPut, "/api/session/cart", strings.NewReader(body))
	req.Header.Set("User-Agent", "shop-web/1.0")
	attachCookies(req, cookies)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Wrong token.
	req = httptest.NewRequest(http.MethodPut, "/api/session/cart", strings.NewReader(body))
	req.Header.Set("User-Agent", "shop-web/1.0")
	req.Header.Set(CSRFHeaderName, "not-the-token")
	attachCookies(req, cookies)
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSessionHandlers_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newRouterFixture(t, ctrl)

	view, cookies := f.bootstrapSession(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("User-Agent", "shop-web/1.0")
	req.Header.Set(CSRFHeaderName, view.CSRFToken)
	attachCookies(req, cookies)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, f.backend.Len())

	// The session cookie was expired.
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session_id" {
			assert.Less(t, c.MaxAge, 0)
		}
	}
}
