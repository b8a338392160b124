package schtask

import (
	"fmt"
	"strings"
)

// Quote renders a string as a PowerShell double-quoted literal: the value is
// wrapped in double quotes and embedded double quotes are doubled. Every
// value interpolated into a generated command goes through this, including
// task names, paths, descriptions and credentials.
func Quote(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// Unquote is the inverse of Quote. It rejects strings that are not a single
// well-formed double-quoted literal.
func Unquote(quoted string) (string, error) {
	if len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
		return "", fmt.Errorf("not a quoted literal: %q", quoted)
	}
	inner := quoted[1 : len(quoted)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] != '"' {
			b.WriteByte(inner[i])
			continue
		}
		if i+1 >= len(inner) || inner[i+1] != '"' {
			return "", fmt.Errorf("unescaped quote in literal: %q", quoted)
		}
		b.WriteByte('"')
		i++
	}
	return b.String(), nil
}
