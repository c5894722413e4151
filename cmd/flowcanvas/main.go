// flowcanvas runs a single prompt through a source -> LLM -> sink workflow.
//
// Usage:
//
//	flowcanvas run --prompt "What is 2+2?" --model gpt-3.5-turbo-instruct [--credential=<key>]
//	               [--endpoint=<url>] [--config=<file>] [--history=<db>] [--dry-run]
//	flowcanvas version
//
// The credential falls back to $OPENAI_API_KEY.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
