package horosafe

import (
	"errors"
	"net/netip"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	lookupHost = func(host string) ([]string, error) {
		switch host {
		case "internal.example":
			return []string{"10.1.2.3"}, nil
		default:
			return []string{"93.184.216.34"}, nil
		}
	}
	t.Cleanup(func() { lookupHost = defaultLookup })

	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://cdn.example.com/img.jpg", nil},
		{"http://example.com/hook", nil},
		{"ftp://evil.com/data", ErrUnsafeScheme},
		{"javascript:alert(1)", ErrUnsafeScheme},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://10.0.0.1/internal", ErrSSRF},
		{"http://192.168.1.1/api", ErrSSRF},
		{"http://[::1]/api", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data", ErrSSRF},
		{"http://localhost:8080/", ErrSSRF},
		{"https://internal.example/x", ErrSSRF},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if tt.wantErr == nil {
			if err != nil {
				t.Errorf("ValidateURL(%q): got %v, want nil", tt.url, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateURL(%q): got %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateURL_NoHost(t *testing.T) {
	if err := ValidateURL("http:///path"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", false},
		{"172.20.0.1", true},
		{"172.32.0.1", false},
		{"::ffff:10.0.0.1", true},
		{"0.0.0.0", true},
	}
	for _, tt := range tests {
		if got := IsPrivate(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("IsPrivate(%s): got %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want hello", data)
	}

	_, err = LimitedReadAll(strings.NewReader("hello!"), 5)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}
