package main

import "github.com/sowonlabs/crewx/cmd"

func main() {
	cmd.Execute()
}
