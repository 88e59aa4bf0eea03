package main

import "github.com/stackfetch/stack-fetcher/cmd/stack-fetch/cmd"

func main() {
	cmd.Execute()
}
