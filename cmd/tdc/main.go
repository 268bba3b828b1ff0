// Package main is the entry point for the tdc CLI tool.
package main

import (
	"tdcache/internal/cmd"
)

func main() {
	cmd.Execute()
}
