package main

import "github.com/kairo-ai/kairo/cmd/kairo/cmd"

func main() {
	cmd.Execute()
}
