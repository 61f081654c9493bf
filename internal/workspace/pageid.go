package workspace

import (
	"fmt"
	"regexp"
	"strings"
)

var hex32 = regexp.MustCompile(`[a-f0-9]{32}`)

// NormalizePageID accepts a page identifier as users paste it: a raw
// 32-hex ID, an already hyphenated UUID, or a full page URL. The result is
// the canonical hyphenated form; inputs that contain no recognizable ID
// pass through unchanged.
func NormalizePageID(raw string) string {
	clean := strings.NewReplacer("-", "", " ", "").Replace(raw)

	if strings.Contains(raw, "notion.so") {
		if m := hex32.FindString(strings.ToLower(raw)); m != "" {
			clean = m
		}
	}

	if len(clean) == 32 {
		return fmt.Sprintf("%s-%s-%s-%s-%s",
			clean[:8], clean[8:12], clean[12:16], clean[16:20], clean[20:32])
	}
	return raw
}
