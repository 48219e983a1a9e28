package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFailFieldShape(t *testing.T) {
	rec := httptest.NewRecorder()
	FailField(rec, http.StatusNotFound, "not_found", "employee_emp_id", "Employee with emp_id 'X' not found.", "req-1")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Fields map[string][]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "not_found" || body.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if got := body.Error.Details.Fields["employee_emp_id"]; len(got) != 1 || got[0] != body.Error.Message {
		t.Fatalf("unexpected field details: %+v", body.Error.Details.Fields)
	}
}

func TestFailOmitsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusUnauthorized, "unauthorized", "authentication required", "")

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if string(raw["success"]) != "false" {
		t.Fatalf("expected success false, got %s", raw["success"])
	}
	var apiErr map[string]any
	if err := json.Unmarshal(raw["error"], &apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if apiErr["code"] != "unauthorized" {
		t.Fatalf("unexpected error code %v", apiErr["code"])
	}
	if _, ok := apiErr["details"]; ok {
		t.Fatal("details should be omitted when empty")
	}
}

func TestAttachmentHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Attachment(rec, "application/pdf", "evaluation-1.pdf", []byte("%PDF-1.3"))

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="evaluation-1.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Header().Get("Content-Length") != "8" || rec.Body.String() != "%PDF-1.3" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
