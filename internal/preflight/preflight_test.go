package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lr2ise/internal/testsupport"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "lr2ise",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func iseServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/fmi_platform/v1/identityauth/generatetoken" {
			http.NotFound(w, r)
			return
		}
		if status < 300 {
			w.Header().Set("X-auth-access-token", "tok")
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	result := CheckDirectoryAccess("test", path)
	if result.Passed {
		t.Fatal("expected failure for regular file")
	}
	if !strings.Contains(result.Detail, "is not a directory") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckSearchToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	valid := CheckSearchToken(signedToken(t, now.Add(72*time.Hour)), now)
	if !valid.Passed || !strings.Contains(valid.Detail, "valid until 2024-05-04T12:00:00Z") {
		t.Fatalf("unexpected result for valid token: %+v", valid)
	}

	soon := CheckSearchToken(signedToken(t, now.Add(time.Hour)), now)
	if !soon.Passed || !strings.Contains(soon.Detail, "within 24h") {
		t.Fatalf("expected near-expiry note, got %+v", soon)
	}

	expired := CheckSearchToken(signedToken(t, now.Add(-time.Minute)), now)
	if expired.Passed || !strings.Contains(expired.Detail, "expired") {
		t.Fatalf("expected expired token to fail, got %+v", expired)
	}

	opaque := CheckSearchToken("not-a-jwt", now)
	if !opaque.Passed || opaque.Detail != "present (expiry unknown)" {
		t.Fatalf("expected opaque token to pass, got %+v", opaque)
	}

	missing := CheckSearchToken("", now)
	if missing.Passed {
		t.Fatal("expected empty token to fail")
	}
}

func TestTokenExpiryIgnoresSignature(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok {
		t.Fatal("expected expiry to be read")
	}
	if !got.Equal(exp) {
		t.Fatalf("unexpected expiry: %v", got)
	}
}

func TestCheckISE_OK(t *testing.T) {
	srv := iseServer(t, http.StatusNoContent)
	cfg := testsupport.NewConfig(t, testsupport.WithISE(srv.URL, "svc", "secret"))
	result := CheckISE(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
}

func TestCheckISE_BadCredentials(t *testing.T) {
	srv := iseServer(t, http.StatusUnauthorized)
	cfg := testsupport.NewConfig(t, testsupport.WithISE(srv.URL, "svc", "wrong"))
	result := CheckISE(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for rejected credentials")
	}
	if !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_MissingSettingsFailWithoutContact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDomain(""))
	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Fatalf("expected state dir to pass, got %s", results[0].Detail)
	}
	failed := Failed(results)
	if len(failed) != 3 {
		t.Fatalf("expected 3 failures, got %+v", failed)
	}
	if !strings.Contains(failed[0].Detail, "LR_API_URL") {
		t.Fatalf("expected env hint, got %s", failed[0].Detail)
	}
}

func TestRunAll_AllPassing(t *testing.T) {
	srv := iseServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t,
		testsupport.WithSearch("https://lr.example.com/lr-search-api", signedToken(t, time.Now().Add(48*time.Hour))),
		testsupport.WithISE(srv.URL, "svc", "secret"),
	)
	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
}
