package main

import "github.com/radlocal/radlocal-deploy/cmd/radlocal-updater/cmd"

func main() {
	cmd.Execute()
}
