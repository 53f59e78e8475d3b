// Package main points at the csim command line tool.
//
// For the full CLI, use: go run ./cmd/csim
package main

import "fmt"

func main() {
	fmt.Println("csim lives in ./cmd/csim. Run 'go run ./cmd/csim --help' for usage.")
}
