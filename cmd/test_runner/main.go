// Command test_runner runs the module's tests by suite with an isolated environment.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// suites groups packages by what they touch.
var suites = map[string][]string{
	"core": {
		"./internal/domain/...",
		"./internal/ledger/...",
		"./internal/risk/...",
		"./internal/strategy/...",
	},
	"storage": {
		"./internal/adapters/...",
		"./internal/utils/...",
	},
	"app": {
		"./internal/app/...",
		"./internal/cli/...",
		"./config/...",
	},
}

var (
	suite      = flag.String("suite", "all", "suite to run: all, "+strings.Join(suiteNames(), ", "))
	verbose    = flag.Bool("v", false, "verbose output")
	short      = flag.Bool("short", false, "run only short tests")
	race       = flag.Bool("race", false, "enable the race detector")
	cover      = flag.Bool("cover", false, "report coverage")
	timeout    = flag.Duration("timeout", 5*time.Minute, "test timeout")
	testRegexp = flag.String("run", "", "run only tests matching the regular expression")
)

func suiteNames() []string {
	names := make([]string, 0, len(suites))
	for n := range suites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func main() {
	flag.Parse()

	var pkgs []string
	if *suite == "all" {
		pkgs = []string{"./..."}
	} else if p, ok := suites[*suite]; ok {
		pkgs = p
	} else {
		fmt.Fprintf(os.Stderr, "unknown suite %q\n", *suite)
		os.Exit(2)
	}

	args := []string{"test"}
	if *verbose {
		args = append(args, "-v")
	}
	if *short {
		args = append(args, "-short")
	}
	if *race {
		args = append(args, "-race")
	}
	if *cover {
		args = append(args, "-cover")
	}
	args = append(args, fmt.Sprintf("-timeout=%s", timeout.String()))
	if *testRegexp != "" {
		args = append(args, fmt.Sprintf("-run=%s", *testRegexp))
	}
	args = append(args, pkgs...)

	// Tests must never pick up a developer's database or fund.
	tmp, err := os.MkdirTemp("", "fundsim-tests-*")
	if err != nil {
		fmt.Printf("Error creating temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"DB_PATH="+filepath.Join(tmp, "fundsim.db"),
		"FUND_ID=",
		"TICKERS=",
		"LOG_LEVEL=ERROR",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("Running tests with args: %s\n", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		code := 1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			fmt.Printf("Error running tests: %v\n", err)
		}
		os.RemoveAll(tmp)
		os.Exit(code)
	}
}
