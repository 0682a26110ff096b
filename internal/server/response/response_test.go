package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusCreated, map[string]string{"id": "u1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Error   *ErrorBody        `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data["id"] != "u1" || body.Error != nil {
		t.Errorf("body = %+v", body)
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusUnauthorized, CodeSessionRevoked, "session revoked")

	want := `{"success":false,"error":{"code":"AUTH_SESSION_REVOKED","message":"session revoked"}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func TestDecode(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice"}`))
	if err := Decode(r, &dest); err != nil || dest.Name != "alice" {
		t.Errorf("Decode = %v, %+v", err, dest)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := Decode(r, &dest); err != nil {
		t.Errorf("empty body: %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`))
	if err := Decode(r, &dest); err == nil {
		t.Error("unknown field should fail")
	}
}
