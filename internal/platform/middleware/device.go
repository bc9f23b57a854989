package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"aegis/pkg/requestcontext"
)

// DeviceContext derives a coarse "browser/os/platform" summary from the
// User-Agent header and stores it in the context for security event logs.
// IP addresses are deliberately excluded; the summary is contextual, not
// identifying.
func DeviceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary := deviceSummary(r.UserAgent())
		if summary != "" {
			r = r.WithContext(requestcontext.WithDevice(r.Context(), summary))
		}
		next.ServeHTTP(w, r)
	})
}

func deviceSummary(userAgentString string) string {
	if userAgentString == "" {
		return ""
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		browser = "unknown"
	}

	os := strings.ToLower(strings.TrimSpace(ua.OS()))
	if os == "" {
		os = "unknown"
	}

	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	} else if ua.Bot() {
		platform = "bot"
	}

	return fmt.Sprintf("%s/%s/%s", browser, os, platform)
}
