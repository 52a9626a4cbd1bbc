package main

import "testing"

func TestDecodeResultRoundTrip(t *testing.T) {
	result := map[string]any{"sessionId": "s1", "status": "live"}
	var dst struct {
		SessionID string `json:"sessionId"`
		Status    string `json:"status"`
	}
	if err := decodeResult(result, &dst); err != nil {
		t.Fatalf("decodeResult: %v", err)
	}
	if dst.SessionID != "s1" || dst.Status != "live" {
		t.Fatalf("got %+v", dst)
	}
}

func TestDecodeResultRejectsMismatchedShape(t *testing.T) {
	result := map[string]any{"sessionId": 123}
	var dst struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeResult(result, &dst); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
