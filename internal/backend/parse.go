package backend

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	thinkBlock   = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence    = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	numberedLine = regexp.MustCompile(`^\s*(\d+)\s*[.):]\s*(.*)$`)
)

// sanitizeOutput strips reasoning blocks and code fences some models wrap
// their answers in before the line protocol is parsed.
func sanitizeOutput(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	out = codeFence.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// parseNumberedLines extracts translations from a numbered-line response.
// Every line number in [1, count] must appear exactly once; anything else
// is a protocol violation and the whole batch is rejected so the scheduler
// can retry.
func parseNumberedLines(raw string, count int) ([]string, error) {
	cleaned := sanitizeOutput(raw)

	translations := make(map[int]string, count)
	for _, line := range strings.Split(cleaned, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > count {
			continue
		}
		if _, dup := translations[n]; dup {
			return nil, fmt.Errorf("line %d appears twice in response", n)
		}
		translations[n] = strings.TrimSpace(m[2])
	}

	if len(translations) != count {
		return nil, fmt.Errorf("expected %d numbered lines, got %d", count, len(translations))
	}

	out := make([]string, count)
	for i := 1; i <= count; i++ {
		out[i-1] = translations[i]
	}
	return out, nil
}
