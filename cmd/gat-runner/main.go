package main

import "github.com/oshokin/gat-runner/cmd/gat-runner/cmd"

func main() {
	cmd.Execute()
}
