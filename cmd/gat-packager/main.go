package main

import "github.com/oshokin/gat-runner/cmd/gat-packager/cmd"

func main() {
	cmd.Execute()
}
