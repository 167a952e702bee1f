package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultCurlTimeout = 30 * time.Second

// CurlSource shells out for endpoints the HTTP client cannot express
// (client certificates, exotic transfer flags). {name} placeholders
// substitute into the argument list; the process is killed hard on timeout.
type CurlSource struct {
	Bin     string   // "curl" unless set
	Args    []string // argument templates with {name} placeholders
	Timeout time.Duration
}

// Run executes the subprocess and parses stdout as JSON when possible.
func (s *CurlSource) Run(ctx context.Context, params map[string]interface{}) (interface{}, string, error) {
	bin := s.Bin
	if bin == "" {
		bin = "curl"
	}

	args := make([]string, len(s.Args))
	for i, arg := range s.Args {
		for name, value := range params {
			arg = strings.ReplaceAll(arg, "{"+name+"}", paramString(value))
		}
		args[i] = arg
	}
	descriptor := bin + " " + strings.Join(args, " ")

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCurlTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, descriptor, fmt.Errorf("subprocess timed out after %s", timeout)
	}
	if err != nil {
		return nil, descriptor, fmt.Errorf("subprocess failed: %w", err)
	}

	trimmed := strings.TrimSpace(string(out))
	var decoded interface{}
	if json.Unmarshal([]byte(trimmed), &decoded) == nil {
		return normalizeJSON(decoded), descriptor, nil
	}
	return trimmed, descriptor, nil
}
