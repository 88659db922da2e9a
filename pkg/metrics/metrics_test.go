package metrics

import (
	"net/http/httptest"
	"testing"
)

func TestHandler_Serves(t *testing.T) {
	handler := Handler()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics response should not be empty")
	}
}

func TestRegistry_NotNil(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should be initialized")
	}
}
