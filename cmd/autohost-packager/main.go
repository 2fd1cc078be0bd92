package main

import "github.com/oshokin/autohost-updater/cmd/autohost-packager/cmd"

func main() {
	cmd.Execute()
}
