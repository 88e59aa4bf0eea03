package main

import "github.com/stackfetch/stack-fetcher/cmd/stack-publisher/cmd"

func main() {
	cmd.Execute()
}
