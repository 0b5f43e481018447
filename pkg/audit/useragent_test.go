package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want DeclaredIdentity
	}{
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
			want: DeclaredIdentity{Browser: "Chrome", BrowserVersion: "133", OS: "Windows"},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0",
			want: DeclaredIdentity{Browser: "Firefox", BrowserVersion: "135", OS: "Linux"},
		},
		{
			name: "safari on macos",
			ua:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
			want: DeclaredIdentity{Browser: "Safari", BrowserVersion: "18", OS: "macOS"},
		},
		{
			name: "edge declares edge not chrome",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36 Edg/133.0.0.0",
			want: DeclaredIdentity{Browser: "Edge", BrowserVersion: "133", OS: "Windows"},
		},
		{
			name: "safari on ios",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 18_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Mobile/15E148 Safari/604.1",
			want: DeclaredIdentity{Browser: "Safari", BrowserVersion: "18", OS: "iOS"},
		},
		{
			name: "curl is automation",
			ua:   "curl/8.5.0",
			want: DeclaredIdentity{Automation: true},
		},
		{
			name: "python requests is automation",
			ua:   "python-requests/2.32.0",
			want: DeclaredIdentity{Automation: true},
		},
		{
			name: "go http client is automation",
			ua:   "Go-http-client/2.0",
			want: DeclaredIdentity{Automation: true},
		},
		{
			name: "headless chrome is automation",
			ua:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/133.0.0.0 Safari/537.36",
			want: DeclaredIdentity{Browser: "Chrome", BrowserVersion: "133", OS: "Linux", Automation: true},
		},
		{
			name: "empty",
			ua:   "",
			want: DeclaredIdentity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserAgent(tt.ua))
		})
	}
}
