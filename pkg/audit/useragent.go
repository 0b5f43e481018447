package audit

import (
	"regexp"
	"strings"
)

// DeclaredIdentity is what a client claims to be through its User-Agent
// header. It is the declared side of the consistency audit; the observed side
// comes from the TCP and TLS layers.
type DeclaredIdentity struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Automation     bool   `json:"automation"`
}

var uaVersionPatterns = []struct {
	browser string
	re      *regexp.Regexp
}{
	// Order matters: Edge and Opera embed a Chrome token, Chrome embeds a
	// Safari token.
	{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/(\d+)`)},
	{"Opera", regexp.MustCompile(`OPR/(\d+)`)},
	{"Chrome", regexp.MustCompile(`Chrome/(\d+)`)},
	{"Firefox", regexp.MustCompile(`Firefox/(\d+)`)},
	{"Safari", regexp.MustCompile(`Version/(\d+)[.\d]* .*Safari`)},
}

var uaAutomationTokens = []string{
	"curl/", "wget/", "python-requests/", "go-http-client", "java/",
	"okhttp", "libwww-perl", "scrapy", "httpx/", "aiohttp/",
	"headlesschrome", "phantomjs", "selenium", "puppeteer", "playwright",
	"bot", "spider", "crawler",
}

// ParseUserAgent infers the declared browser, version and OS from a
// User-Agent string. Empty fields mean the UA did not declare that part.
func ParseUserAgent(ua string) DeclaredIdentity {
	id := DeclaredIdentity{}
	if ua == "" {
		return id
	}

	lower := strings.ToLower(ua)
	for _, token := range uaAutomationTokens {
		if strings.Contains(lower, token) {
			id.Automation = true
			break
		}
	}

	for _, p := range uaVersionPatterns {
		if m := p.re.FindStringSubmatch(ua); m != nil {
			id.Browser = p.browser
			id.BrowserVersion = m[1]
			break
		}
	}

	switch {
	case strings.Contains(ua, "Windows NT"):
		id.OS = "Windows"
	case strings.Contains(ua, "Android"):
		id.OS = "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		id.OS = "iOS"
	case strings.Contains(ua, "Mac OS X"), strings.Contains(ua, "Macintosh"):
		id.OS = "macOS"
	case strings.Contains(ua, "Linux"):
		id.OS = "Linux"
	}
	return id
}
