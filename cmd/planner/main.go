package main

import (
	"os"
	"strings"

	"planner/internal/cli"
)

func isTaskID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "task-") && len(s) > len("task-")
}

// rewriteTaskShortcutArgs turns `planner [flags] <task-id>` into
// `planner [flags] edit <task-id>`. Cobra would otherwise read the id as a subcommand.
func rewriteTaskShortcutArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Flags whose value is a separate token. Unknown flags are skipped without
	// consuming a value so the id is never swallowed.
	valueFlags := map[string]bool{
		"--config":    true,
		"--db":        true,
		"--log-level": true,
		"--log-file":  true,
		"--timeout":   true,
		"--listen":    true,
		"--format":    true,
	}

	insertAt := func(i int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "edit")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isTaskID(argv[i+1]) {
				return insertAt(i)
			}
			return argv
		case strings.HasPrefix(a, "-"):
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		case isTaskID(a):
			return insertAt(i)
		default:
			return argv
		}
	}
	return argv
}

func main() {
	os.Args = rewriteTaskShortcutArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
