// Package main is the entry point for speechgate.
package main

func main() {
	Execute()
}
