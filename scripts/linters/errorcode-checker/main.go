// Command errorcode-checker enforces the repository's error-code discipline:
// every code minted with errors.MustNewCode must be lowercase dotted
// snake_case and referenced somewhere, and server packages must not build
// errors with fmt.Errorf or bare errors.New.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

func main() {
	var (
		dir        = flag.String("dir", ".", "Directory to check")
		configPath = flag.String("config", ".errorcode.yml", "Path to configuration file")
	)
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: using default configuration: %v", err)
		config, _ = loadConfig("")
	}

	c := newChecker(config.Verbose)

	fmt.Printf("🔍 Checking error code usage in %s\n", *dir)
	fmt.Printf("🚫 Excluding: %s\n\n", strings.Join(config.ExcludePaths, ", "))

	if err := c.CheckDirectory(*dir, config.ExcludePaths); err != nil {
		log.Fatalf("check failed: %v", err)
	}
	allUsed, report := c.Report()
	for _, line := range report {
		fmt.Println(line)
	}
	fmt.Println()

	noForbidden := true
	if config.CheckForbidden {
		if err := c.CheckForbiddenPatterns(*dir, config.ExcludePaths, config.ForbiddenPatterns); err != nil {
			log.Fatalf("forbidden pattern check failed: %v", err)
		}
		var lines []string
		noForbidden, lines = c.ForbiddenReport()
		for _, line := range lines {
			fmt.Println(line)
		}
		if !noForbidden {
			fmt.Println()
		}
	}

	if allUsed && noForbidden {
		fmt.Println("✅ Error code discipline holds")
		os.Exit(0)
	}
	if !allUsed && config.ExitOnUnused {
		fmt.Println("🚨 Unused or malformed error codes")
		os.Exit(1)
	}
	if !noForbidden && config.ExitOnForbidden {
		fmt.Println("🚨 Forbidden error patterns found")
		os.Exit(1)
	}
	fmt.Println("⚠️  Findings above are advisory (exit_on_* disabled)")
}
