package main

import "github.com/samsaffron/term-llm/cmd"

func main() {
	cmd.Execute()
}
