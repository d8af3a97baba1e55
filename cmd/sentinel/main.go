package main

import "github.com/safecircle/sentinel/internal/cli"

func main() {
	cli.Execute()
}
