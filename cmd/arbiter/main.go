package main

import "github.com/Arbiter-AC/arbiter/cmd/arbiter/cmd"

func main() {
	cmd.Execute()
}
