package main

import "github.com/oshokin/autohost-updater/cmd/autohost-updater/cmd"

func main() {
	cmd.Execute()
}
