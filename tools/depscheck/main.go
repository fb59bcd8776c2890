package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const module = "github.com/ThePuug/closed-economy/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under To.
type rule struct {
	From string
	To   string
}

// The protocol core stays transport-free, and the leaf packages never reach
// back up the stack.
var rules = []rule{
	{From: "internal/event", To: "internal/dispatch"},
	{From: "internal/event", To: "internal/world"},
	{From: "internal/hex", To: "internal/"},
	{From: "internal/dispatch", To: "internal/world"},
	{From: "internal/dispatch", To: "internal/authority"},
	{From: "internal/authority", To: "internal/net"},
	{From: "internal/authority", To: "internal/reconcile"},
	{From: "internal/reconcile", To: "internal/net"},
	{From: "internal/world", To: "internal/authority"},
	{From: "internal/ui", To: "internal/authority"},
}

func violates(pkg, imp string) (rule, bool) {
	from := strings.TrimPrefix(pkg, module)
	if !strings.HasPrefix(imp, module) {
		return rule{}, false
	}
	to := strings.TrimPrefix(imp, module)
	for _, r := range rules {
		if !strings.HasPrefix(from, r.From) || strings.HasPrefix(to, r.From) {
			continue
		}
		if strings.HasPrefix(to, r.To) {
			return r, true
		}
	}
	return rule{}, false
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		for _, imp := range pkg.Imports {
			if r, bad := violates(pkg.ImportPath, imp); bad {
				violations = append(violations, fmt.Sprintf("%s -> %s (%s must not import %s)", pkg.ImportPath, imp, r.From, r.To))
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}
