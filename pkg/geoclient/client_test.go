package geoclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocate_PrivateAndLoopbackAreLocal(t *testing.T) {
	c := NewClient("http://unused.invalid")
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1"} {
		if got := c.Locate(context.Background(), ip); got != Local {
			t.Fatalf("expected %s for %s, got %q", Local, ip, got)
		}
	}
	if got := c.Locate(context.Background(), "not-an-ip"); got != Unknown {
		t.Fatalf("expected %s for invalid ip, got %q", Unknown, got)
	}
}

func TestLocate_FormatsLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/8.8.8.8" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","country":"India","regionName":"Karnataka","city":"Bengaluru"}`))
	}))
	defer srv.Close()

	got := NewClient(srv.URL).Locate(context.Background(), "8.8.8.8")
	if got != "Bengaluru, Karnataka, India" {
		t.Fatalf("unexpected location %q", got)
	}
}

func TestLocate_FailuresAreUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if got := NewClient(srv.URL).Locate(context.Background(), "8.8.4.4"); got != Unknown {
		t.Fatalf("expected %s on server error, got %q", Unknown, got)
	}
}
