// Command smoke probes a running academy-api instance against a list of
// endpoints and reports status and latency per target. Intended for
// post-deploy checks; exits non-zero when a critical target fails.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type target struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Body       string `json:"body,omitempty"`
	WantStatus int    `json:"want_status"`
	AuthRole   string `json:"auth_role,omitempty"`
	Critical   bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type probe struct {
	Target   target
	Status   int
	Pass     bool
	Error    error
	Duration time.Duration
}

func main() {
	var (
		baseURL     string
		targetsPath string
		adminToken  string
		userToken   string
		timeout     time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&adminToken, "admin-token", os.Getenv("SMOKE_ADMIN_TOKEN"), "Bearer token for admin targets")
	flag.StringVar(&userToken, "user-token", os.Getenv("SMOKE_USER_TOKEN"), "Bearer token for student targets")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		probes   []probe
		breaking int
		warnings int
	)

	for _, t := range targets {
		p := probeTarget(client, baseURL, t, tokenFor(t, adminToken, userToken))
		if !p.Pass {
			if t.Critical {
				breaking++
			} else {
				warnings++
			}
		}
		probes = append(probes, p)
	}

	printReport(probes)

	fmt.Printf("Failures: %d critical, %d non-critical\n", breaking, warnings)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func tokenFor(tgt target, adminToken, userToken string) string {
	switch tgt.AuthRole {
	case "admin":
		return adminToken
	case "student":
		return userToken
	default:
		return ""
	}
}

func probeTarget(client *http.Client, base string, tgt target, token string) probe {
	p := probe{Target: tgt}
	resp, dur, err := performRequest(client, base, tgt, token)
	p.Duration = dur
	if err != nil {
		p.Error = err
		return p
	}
	defer resp.Body.Close()
	// Drain so keep-alive connections get reused across probes.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		p.Error = fmt.Errorf("read body: %w", err)
		return p
	}

	p.Status = resp.StatusCode
	want := tgt.WantStatus
	if want == 0 {
		want = http.StatusOK
	}
	p.Pass = p.Status == want
	return p
}

func performRequest(client *http.Client, base string, tgt target, token string) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	var body io.Reader
	if tgt.Body != "" {
		body = bytes.NewBufferString(tgt.Body)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, 0, err
	}
	if tgt.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

func printReport(results []probe) {
	fmt.Println("Smoke Report")
	fmt.Println("============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Pass {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d (%s) | Critical: %t\n", res.Status, res.Duration, res.Target.Critical)
	}
}
