package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"pressline/internal/config"
)

// Pinger reports record store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

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

// CheckStore pings the record store with a bounded timeout.
func CheckStore(ctx context.Context, backend string, pinger Pinger, timeout time.Duration) Result {
	name := "Record store"
	if backend = strings.TrimSpace(backend); backend != "" {
		name = fmt.Sprintf("Record store (%s)", backend)
	}
	if pinger == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pinger.Ping(checkCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "ping timed out (store unresponsive)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("ping failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckAuth verifies that the API accepts at least one credential type.
func CheckAuth(cfg config.Auth) Result {
	const name = "API authentication"

	var methods []string
	if cfg.TokenSecret != "" {
		methods = append(methods, "bearer")
	}
	if cfg.AllowBasic {
		methods = append(methods, "basic")
	}
	if len(methods) == 0 {
		return Result{Name: name, Detail: "no method enabled (set auth.token_secret or auth.allow_basic)"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(methods, ", ")}
}
