package main

import "github.com/axondata/reachctl/internal/cli"

func main() {
	cli.Execute()
}
