package http

import (
	nethttp "net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name       string
		noProxy    string
		url        string
		wantBypass bool
	}{
		{"empty list always proxies", "", "https://api.example.com/data", false},
		{"wildcard subdomain", "*.example.com", "https://api.example.com/data", true},
		{"bare domain matches root", "example.com", "https://example.com/data", true},
		{"bare domain matches subdomain", "example.com", "https://api.example.com/data", true},
		{"cidr", "10.0.0.0/8", "http://10.1.2.3:8080/api", true},
		{"non-matching host", "*.internal.corp,10.0.0.0/8", "https://nimbus.example.org/", false},
		{"list with spaces, cidr", "*.example.com, 192.168.0.0/16, minio.local", "http://192.168.1.100/api", true},
		{"list with spaces, exact", "*.example.com, 192.168.0.0/16, minio.local", "http://minio.local:9000/datasets", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxyFunc := proxyFuncWithBypass(proxyURL, tt.noProxy, logging.NewNopLogger())
			req, _ := nethttp.NewRequest(nethttp.MethodGet, tt.url, nil)

			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass {
				if result == nil {
					t.Fatalf("expected proxy for %s, got direct", tt.url)
				}
				if result.Host != "proxy.corp:8080" {
					t.Errorf("proxy host = %s, want proxy.corp:8080", result.Host)
				}
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("Host = %q, want default port 8080", u.Host)
	}
	if u.User != nil {
		t.Error("no credentials should be embedded without a user")
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	u = buildProxyURL(cfg)
	if u.User != nil {
		t.Error("user without password must not be embedded")
	}

	cfg.ProxyPassword = "s3cret"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" {
		t.Errorf("Host = %q", u.Host)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "alice" || pw != "s3cret" {
		t.Errorf("User = %v", u.User)
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		mode, user, password string
		want                 bool
	}{
		{"no-proxy", "alice", "", false},
		{"system", "alice", "", false},
		{"basic", "alice", "", true},
		{"NTLM", "alice", "", true},
		{"basic", "alice", "pw", false},
		{"basic", "", "", false},
	}

	for _, tt := range tests {
		cfg := config.NewConfig()
		cfg.ProxyMode, cfg.ProxyUser, cfg.ProxyPassword = tt.mode, tt.user, tt.password
		if got := NeedsProxyPassword(cfg); got != tt.want {
			t.Errorf("NeedsProxyPassword(%s, %q, %q) = %v, want %v", tt.mode, tt.user, tt.password, got, tt.want)
		}
	}
}

func TestConfigureHTTPClient_Modes(t *testing.T) {
	log := logging.NewNopLogger()

	cfg := config.NewConfig()
	client, err := ConfigureHTTPClient(cfg, log)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	if tr := client.Transport.(*nethttp.Transport); tr.Proxy != nil {
		t.Error("no-proxy mode should not set a proxy func")
	}

	cfg.ProxyMode = "ntlm"
	cfg.ProxyHost = "proxy.corp"
	client, err = ConfigureHTTPClient(cfg, log)
	if err != nil {
		t.Fatalf("ntlm: %v", err)
	}
	if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
		t.Errorf("ntlm transport = %T, want ntlmssp.Negotiator", client.Transport)
	}

	cfg.ProxyMode = "basic"
	cfg.ProxyHost = ""
	client, err = ConfigureHTTPClient(cfg, log)
	if err != nil {
		t.Fatalf("basic without host: %v", err)
	}
	if tr := client.Transport.(*nethttp.Transport); tr.Proxy != nil {
		t.Error("basic mode without host should fall back to a direct connection")
	}

	cfg.ProxyMode = "socks"
	if _, err := ConfigureHTTPClient(cfg, log); err == nil {
		t.Error("unsupported mode should fail")
	}
}

func TestCreateOptimizedClient(t *testing.T) {
	t.Setenv("DISABLE_HTTP2", "true")

	client, err := CreateOptimizedClient(config.NewConfig(), logging.NewNopLogger())
	if err != nil {
		t.Fatalf("CreateOptimizedClient: %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", client.Timeout)
	}
	tr, ok := client.Transport.(*nethttp.Transport)
	if !ok {
		t.Fatalf("Transport = %T", client.Transport)
	}
	if tr.ForceAttemptHTTP2 {
		t.Error("DISABLE_HTTP2 should turn off HTTP/2")
	}
	if !tr.DisableCompression {
		t.Error("compression should be disabled")
	}
}
