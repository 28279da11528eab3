package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "hello"}

	writeJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", ct)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["message"] != "hello" {
		t.Errorf("message = %q, want hello", result["message"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var result ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("code = %s, want %s", result.Error.Code, ErrCodeInvalidRequest)
	}
	if result.Error.Message != "invalid input" {
		t.Errorf("message = %q, want invalid input", result.Error.Message)
	}
}

func TestWriteCommandOK(t *testing.T) {
	w := httptest.NewRecorder()

	writeCommandOK(w, map[string]any{"outline": "a plan"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["success"] != true {
		t.Errorf("success = %v, want true", result["success"])
	}
	if result["outline"] != "a plan" {
		t.Errorf("outline = %v, want %q", result["outline"], "a plan")
	}
}

func TestWriteCommandOKNilFields(t *testing.T) {
	w := httptest.NewRecorder()

	writeCommandOK(w, nil)

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["success"] != true {
		t.Errorf("success = %v, want true", result["success"])
	}
}

func TestWriteCommandError(t *testing.T) {
	w := httptest.NewRecorder()

	writeCommandError(w, errBoom)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (command errors are not HTTP errors)", w.Code)
	}

	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["success"] != false {
		t.Errorf("success = %v, want false", result["success"])
	}
	if result["error"] != errBoom.Error() {
		t.Errorf("error = %v, want %q", result["error"], errBoom.Error())
	}
}

var errBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
