package main

import "github.com/onyx-tools/onyx/cmd"

func main() {
	cmd.Execute()
}
