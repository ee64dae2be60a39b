package ise_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"lr2ise/internal/ise"
	"lr2ise/internal/mapping"
)

func sampleMapping() mapping.IdentityMapping {
	return mapping.IdentityMapping{
		User:      "alice",
		SourceIP:  "10.0.0.5",
		Agent:     "dc01",
		Timestamp: "2024-03-01T12:00:00Z",
		Domain:    "corp.example.com",
	}
}

type fakeISE struct {
	tokenCalls   atomic.Int32
	mappingCalls atomic.Int32
	mappingCode  atomic.Int32
	tokenCode    int
	omitHeader   bool
	issued       atomic.Int32
}

func (f *fakeISE) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fmi_platform/v1/identityauth/generatetoken", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !f.omitHeader {
			n := f.issued.Add(1)
			w.Header().Set("X-auth-access-token", "token-"+string(rune('0'+n)))
		}
		code := f.tokenCode
		if code == 0 {
			code = http.StatusNoContent
		}
		w.WriteHeader(code)
	})
	mux.HandleFunc("/api/identity/v1/identity/identitymapping", func(w http.ResponseWriter, r *http.Request) {
		f.mappingCalls.Add(1)
		if r.Header.Get("X-auth-access-token") == "" {
			t.Errorf("missing access token header")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		for _, key := range []string{"user", "srcIpAddress", "agentInfo", "timestamp", "domain"} {
			if body[key] == "" {
				t.Errorf("missing %s in body %v", key, body)
			}
		}
		code := int(f.mappingCode.Load())
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
	})
	return mux
}

func newClient(t *testing.T, f *fakeISE, password string) *ise.Client {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	client, err := ise.New(server.URL, "svc", password)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresSettings(t *testing.T) {
	if _, err := ise.New("", "svc", "secret"); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := ise.New("https://ise", "", "secret"); err == nil {
		t.Fatal("expected error for missing username")
	}
	if _, err := ise.New("https://ise", "svc", ""); err == nil {
		t.Fatal("expected error for missing password")
	}
}

func TestAddIdentityMappingReusesToken(t *testing.T) {
	fake := &fakeISE{}
	client := newClient(t, fake, "secret")

	for i := 0; i < 3; i++ {
		if err := client.AddIdentityMapping(context.Background(), sampleMapping()); err != nil {
			t.Fatalf("AddIdentityMapping returned error: %v", err)
		}
	}
	if fake.tokenCalls.Load() != 1 {
		t.Fatalf("expected one token request, got %d", fake.tokenCalls.Load())
	}
	if fake.mappingCalls.Load() != 3 {
		t.Fatalf("expected 3 mapping requests, got %d", fake.mappingCalls.Load())
	}
}

func TestUnauthorizedInvalidatesTokenWithoutRetry(t *testing.T) {
	fake := &fakeISE{}
	client := newClient(t, fake, "secret")

	fake.mappingCode.Store(http.StatusUnauthorized)
	err := client.AddIdentityMapping(context.Background(), sampleMapping())
	var statusErr *ise.StatusError
	if !errors.As(err, &statusErr) || !statusErr.Unauthorized() {
		t.Fatalf("expected unauthorized status error, got %v", err)
	}
	if fake.mappingCalls.Load() != 1 {
		t.Fatalf("expected no retry, got %d mapping calls", fake.mappingCalls.Load())
	}

	fake.mappingCode.Store(http.StatusOK)
	if err := client.AddIdentityMapping(context.Background(), sampleMapping()); err != nil {
		t.Fatalf("AddIdentityMapping returned error: %v", err)
	}
	if fake.tokenCalls.Load() != 2 {
		t.Fatalf("expected token to be re-acquired, got %d token calls", fake.tokenCalls.Load())
	}
}

func TestServerErrorKeepsToken(t *testing.T) {
	fake := &fakeISE{}
	client := newClient(t, fake, "secret")

	fake.mappingCode.Store(http.StatusInternalServerError)
	if err := client.AddIdentityMapping(context.Background(), sampleMapping()); err == nil {
		t.Fatal("expected error for 500")
	}
	fake.mappingCode.Store(http.StatusOK)
	if err := client.AddIdentityMapping(context.Background(), sampleMapping()); err != nil {
		t.Fatalf("AddIdentityMapping returned error: %v", err)
	}
	if fake.tokenCalls.Load() != 1 {
		t.Fatalf("expected cached token to survive a 500, got %d token calls", fake.tokenCalls.Load())
	}
}

func TestCheckAuthReportsBadCredentials(t *testing.T) {
	fake := &fakeISE{}
	client := newClient(t, fake, "wrong")
	err := client.CheckAuth(context.Background())
	var statusErr *ise.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func TestCheckAuthRequiresTokenHeader(t *testing.T) {
	fake := &fakeISE{omitHeader: true}
	client := newClient(t, fake, "secret")
	if err := client.CheckAuth(context.Background()); err == nil {
		t.Fatal("expected error when token header is absent")
	}
}

func TestTokenEndpointAcceptsOK(t *testing.T) {
	fake := &fakeISE{tokenCode: http.StatusOK}
	client := newClient(t, fake, "secret")
	if err := client.CheckAuth(context.Background()); err != nil {
		t.Fatalf("CheckAuth returned error: %v", err)
	}
}

func TestAddIdentityMappingRejectsIncompleteMapping(t *testing.T) {
	fake := &fakeISE{}
	client := newClient(t, fake, "secret")
	m := sampleMapping()
	m.Domain = ""
	if err := client.AddIdentityMapping(context.Background(), m); err == nil {
		t.Fatal("expected validation error")
	}
	if fake.tokenCalls.Load() != 0 || fake.mappingCalls.Load() != 0 {
		t.Fatal("expected no requests for an incomplete mapping")
	}
}
