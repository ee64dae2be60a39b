package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sys/unix"

	"lr2ise/internal/config"
	"lr2ise/internal/ise"
)

const (
	searchCheckName  = "LogRhythm token"
	iseCheckName     = "ISE passive identity"
	iseCheckTimeout  = 10 * time.Second
	tokenExpiryGrace = 24 * time.Hour
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// TokenExpiry reads the exp claim of a LogRhythm API token without verifying
// its signature. ok is false when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (expires time.Time, ok bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// CheckSearchToken reports whether the search API token is still valid at now.
// Tokens without a readable expiry pass, since LogRhythm also issues opaque keys.
func CheckSearchToken(token string, now time.Time) Result {
	if token == "" {
		return Result{Name: searchCheckName, Detail: "missing api token"}
	}
	expires, ok := TokenExpiry(token)
	if !ok {
		return Result{Name: searchCheckName, Passed: true, Detail: "present (expiry unknown)"}
	}
	if !now.Before(expires) {
		return Result{Name: searchCheckName, Detail: fmt.Sprintf("expired %s", expires.UTC().Format(time.RFC3339))}
	}
	detail := fmt.Sprintf("valid until %s", expires.UTC().Format(time.RFC3339))
	if expires.Sub(now) < tokenExpiryGrace {
		detail += " (expires within 24h)"
	}
	return Result{Name: searchCheckName, Passed: true, Detail: detail}
}

// CheckISE verifies that ISE issues an access token for the configured credentials.
// It uses a single attempt with a short timeout.
func CheckISE(ctx context.Context, cfg *config.Config, opts ...ise.Option) Result {
	client, err := ise.New(cfg.ISE.URL, cfg.ISE.Username, cfg.ISE.Password,
		append([]ise.Option{ise.WithRequestTimeout(iseCheckTimeout)}, opts...)...)
	if err != nil {
		return Result{Name: iseCheckName, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, iseCheckTimeout)
	defer cancel()

	if err := client.CheckAuth(checkCtx); err != nil {
		return Result{Name: iseCheckName, Detail: summarizeISEError(err)}
	}
	return Result{Name: iseCheckName, Passed: true, Detail: "token issued"}
}

func summarizeISEError(err error) string {
	var statusErr *ise.StatusError
	if errors.As(err, &statusErr) && statusErr.Unauthorized() {
		return "auth failed (check ise.username and ise.password)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "auth check timed out (ISE unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "auth check timed out (ISE unreachable)"
	}
	return err.Error()
}
