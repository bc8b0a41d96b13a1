package main

import (
	"os"
	"strings"

	"taskboard/internal/cli"
)

// Persistent flags that take a value in the next argument.
var valueFlags = map[string]bool{
	"--db":        true,
	"--dimension": true,
	"--project":   true,
	"--redis-url": true,
	"--log-level": true,
	"--format":    true,
}

func isItemID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "item-") && len(s) > len("item-")
}

// expandItemShortcut turns `taskboard [flags] <item-id>` into
// `taskboard [flags] items show <item-id>`. Only the first positional
// argument is considered.
func expandItemShortcut(argv []string) []string {
	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isItemID(argv[i+1]) {
				return insertAt(argv, i+1, "items", "show")
			}
			return argv
		case strings.HasPrefix(a, "-"):
			if valueFlags[a] {
				i++
			}
			continue
		case isItemID(a):
			return insertAt(argv, i, "items", "show")
		}
		return argv
	}
	return argv
}

func insertAt(argv []string, i int, words ...string) []string {
	out := make([]string, 0, len(argv)+len(words))
	out = append(out, argv[:i]...)
	out = append(out, words...)
	return append(out, argv[i:]...)
}

func main() {
	os.Args = expandItemShortcut(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
