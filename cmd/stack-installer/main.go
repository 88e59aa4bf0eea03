package main

import "github.com/stackfetch/stack-fetcher/cmd/stack-installer/cmd"

func main() {
	cmd.Execute()
}
