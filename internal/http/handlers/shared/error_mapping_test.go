package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dujiao-next/orderflow/internal/http/response"
	"github.com/dujiao-next/orderflow/internal/service"

	"github.com/gin-gonic/gin"
)

func respondForTest(t *testing.T, err error, rules []MappedError) response.Response {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RespondMappedError(c, err, rules, response.CodeInternal, "error.order_create_failed")

	if w.Code != http.StatusOK {
		t.Fatalf("http status should stay 200, got %d", w.Code)
	}
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body failed: %v", err)
	}
	return body
}

func TestRespondMappedErrorMatchesWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("sku 3: %w", service.ErrInsufficientStock)
	body := respondForTest(t, err, OrderBuildErrorRules)
	if body.StatusCode != response.CodeConflict {
		t.Fatalf("status code want 409 got %d", body.StatusCode)
	}
	if body.Msg != Message("error.insufficient_stock") {
		t.Fatalf("unexpected message: %s", body.Msg)
	}
}

func TestRespondMappedErrorFallback(t *testing.T) {
	body := respondForTest(t, errors.New("boom"), OrderBuildErrorRules)
	if body.StatusCode != response.CodeInternal {
		t.Fatalf("status code want 500 got %d", body.StatusCode)
	}
}

func TestRefundErrorRulesGateway(t *testing.T) {
	body := respondForTest(t, service.ErrGatewayUnavailable, RefundErrorRules)
	if body.StatusCode != response.CodeBadGateway {
		t.Fatalf("status code want 502 got %d", body.StatusCode)
	}
	body = respondForTest(t, service.ErrOverRefund, RefundErrorRules)
	if body.StatusCode != response.CodeConflict {
		t.Fatalf("status code want 409 got %d", body.StatusCode)
	}
}

func TestMessageUnknownKeyFallsBackToKey(t *testing.T) {
	if got := Message("error.not_registered"); got != "error.not_registered" {
		t.Fatalf("unknown key should echo, got %s", got)
	}
}
