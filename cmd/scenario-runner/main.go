// Package main - scenario-runner
// Executable to run the headless meter trajectory scenarios.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/staminalab/stamina-server/test"
)

func main() {
	fmt.Println("STAMINA SIMULATOR - SCENARIO SUITE")
	fmt.Println("==================================")

	ctx := context.Background()

	suite := test.NewMeterScenarioSuite()
	suite.RunAll(ctx)

	results := suite.GetResults()
	passed := 0
	failed := 0

	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SCENARIO SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	for _, r := range results {
		if !r.Passed {
			fmt.Printf("   FAIL %s: expected %s, got %s\n", r.ScenarioName, r.Expected, r.Actual)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
