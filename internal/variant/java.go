package variant

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var versionRe = regexp.MustCompile(`version "([^"]+)"`)

// JavaVersion runs `java -version` and extracts the quoted version token,
// e.g. `openjdk version "24.0.1" 2025-04-15` yields "24.0.1".
func JavaVersion(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "java", "-version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("running java -version: %w", err)
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("no version string in java -version output: %q", strings.TrimSpace(string(out)))
	}
	return string(m[1]), nil
}

// VersionMatches reports whether the installed version satisfies the
// variant's requirement. Matching is by component prefix: required "24"
// accepts "24.0.1" but not "2.4" or "21".
func VersionMatches(required, actual string) bool {
	if required == "" {
		return true
	}
	if actual == required {
		return true
	}
	return strings.HasPrefix(actual, required+".") || strings.HasPrefix(actual, required+"-") ||
		strings.HasPrefix(actual, required+"+")
}
