package main

import "github.com/oshokin/autohost-updater/cmd/autohost-engine/cmd"

func main() {
	cmd.Execute()
}
