package main

import "github.com/sandcastle-auth/sandcastle/cmd/sandcastle/cmd"

func main() {
	cmd.Execute()
}
