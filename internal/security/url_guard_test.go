package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Post(ts.URL+"/api/order", "application/json", nil); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewURLGuard()

	allowed := []string{
		"https://pizza-factory.cs329.click",
		"https://cdn.example.com/pizza.png",
		"http://example.org/menu",
	}
	for _, u := range allowed {
		if err := guard.ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) returned error: %v", u, err)
		}
	}

	blocked := []string{
		"",
		"not-a-url",
		"ftp://example.com/pizza.png",
		"file:///etc/passwd",
		"http://10.0.0.1/",
		"http://172.16.0.1/",
		"http://192.168.1.100/",
		"http://127.0.0.1/",
		"http://localhost/",
		"http://api.localhost/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
		"http://0.0.0.0/",
	}
	for _, u := range blocked {
		if err := guard.ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) should have returned error", u)
		}
	}
}

func TestValidateImageRef(t *testing.T) {
	guard := NewURLGuard()

	allowed := []string{"", "pizza1.png", "pizza-2.jpg", "veggie_v2.webp", "https://cdn.example.com/p.png"}
	for _, ref := range allowed {
		if err := guard.ValidateImageRef(ref); err != nil {
			t.Errorf("ValidateImageRef(%q) returned error: %v", ref, err)
		}
	}

	blocked := []string{
		"../etc/passwd",
		"pizza.exe",
		"javascript:alert(1)",
		"http://cdn.example.com/p.png",
		"https://127.0.0.1/p.png",
		"https://192.168.0.10/p.png",
	}
	for _, ref := range blocked {
		if err := guard.ValidateImageRef(ref); err == nil {
			t.Errorf("ValidateImageRef(%q) should have returned error", ref)
		}
	}
}

func TestURLGuardInterface(t *testing.T) {
	var _ URLGuard = NewURLGuard()
}
