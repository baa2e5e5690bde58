package main

import "github.com/ftl/tracescope/cmd"

func main() {
	cmd.Execute()
}
