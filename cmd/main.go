/**
 * @description
 * Entry point for the gst-report service. Loads a local .env when present and
 * hands over to the gstreport command tree, which serves by default.
 */
package main

import (
	"github.com/joho/godotenv"

	"github.com/pplcallmesatz/gst-auditor-report/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
