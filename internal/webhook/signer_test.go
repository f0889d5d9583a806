package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestSignIsDeterministicForSameInputs(t *testing.T) {
	body := []byte(`{"room_id":"r1"}`)
	a := sign("secret", 1000, http.MethodPost, resultsPath, body)
	b := sign("secret", 1000, http.MethodPost, resultsPath, body)
	if a != b {
		t.Fatalf("expected identical signatures for identical inputs")
	}
}

func TestSignChangesWithBody(t *testing.T) {
	a := sign("secret", 1000, http.MethodPost, resultsPath, []byte(`{"a":1}`))
	b := sign("secret", 1000, http.MethodPost, resultsPath, []byte(`{"a":2}`))
	if a == b {
		t.Fatalf("expected different bodies to produce different signatures")
	}
}

func TestSubmitSendsExpectedHeadersAndSignature(t *testing.T) {
	var gotSig, gotTs, gotKey, gotSvc, gotIdem string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Usion-Signature")
		gotTs = r.Header.Get("X-Usion-Timestamp")
		gotKey = r.Header.Get("X-Usion-Key-Id")
		gotSvc = r.Header.Get("X-Usion-Service-Id")
		gotIdem = r.Header.Get("X-Idempotency-Key")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer srv.Close()

	signer := NewSigner(Config{
		APIURL:       srv.URL,
		ServiceID:    "usion-game-service-1",
		SigningKeyID: "key-1",
		Secret:       "topsecret",
	}, nil)

	payload := ResultPayload{
		RoomID:       "room-abc",
		SessionID:    "sess-abc",
		WinnerIDs:    []string{"user-1"},
		Participants: []string{"user-1", "user-2"},
		Reason:       "elimination",
		FinalTick:    500,
	}

	decoded, err := signer.Submit(context.Background(), payload)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if decoded["accepted"] != true {
		t.Fatalf("expected decoded response body, got %v", decoded)
	}

	if gotSig == "" || gotTs == "" {
		t.Fatalf("expected signature and timestamp headers to be set")
	}
	ts, err := strconv.ParseInt(gotTs, 10, 64)
	if err != nil {
		t.Fatalf("expected a unix-seconds timestamp header, got %q: %v", gotTs, err)
	}
	if want := sign("topsecret", ts, http.MethodPost, resultsPath, gotBody); gotSig != want {
		t.Fatalf("expected signature %q over the sent body, got %q", want, gotSig)
	}
	if gotKey != "key-1" {
		t.Fatalf("expected key id header key-1, got %q", gotKey)
	}
	if gotSvc != "usion-game-service-1" {
		t.Fatalf("expected service id header, got %q", gotSvc)
	}
	if gotIdem == "" {
		t.Fatalf("expected an idempotency key header")
	}

	var sentBody ResultPayload
	if err := json.Unmarshal(gotBody, &sentBody); err != nil {
		t.Fatalf("failed to decode submitted body: %v", err)
	}
	if sentBody.RoomID != "room-abc" {
		t.Fatalf("expected room id round-trip, got %q", sentBody.RoomID)
	}
	if sentBody.SessionID != "sess-abc" {
		t.Fatalf("expected session id round-trip, got %q", sentBody.SessionID)
	}
	if len(sentBody.Participants) != 2 {
		t.Fatalf("expected participants round-trip, got %v", sentBody.Participants)
	}
	if sentBody.EndedAt == "" {
		t.Fatalf("expected ended_at to be set")
	}
	if _, err := time.Parse(time.RFC3339, sentBody.EndedAt); err != nil {
		t.Fatalf("expected ended_at to be RFC3339, got %q: %v", sentBody.EndedAt, err)
	}
}

func TestSubmitReturnsWebhookErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	signer := NewSigner(Config{APIURL: srv.URL, Secret: "s"}, nil)
	_, err := signer.Submit(context.Background(), ResultPayload{RoomID: "room-x"})
	if err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
	var webhookErr *WebhookError
	if !errors.As(err, &webhookErr) {
		t.Fatalf("expected a *WebhookError, got %T: %v", err, err)
	}
	if webhookErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500 recorded, got %d", webhookErr.StatusCode)
	}
}
