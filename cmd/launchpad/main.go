package main

import "github.com/oshokin/launchpad/cmd/launchpad/cmd"

func main() {
	cmd.Execute()
}
