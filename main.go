package main

import "github.com/nekoha/localsend-cli/cmd"

func main() {
	cmd.Execute()
}
