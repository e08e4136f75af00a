package main

import "github.com/radlocal/radlocal-deploy/cmd/radlocal-uninstaller/cmd"

func main() {
	cmd.Execute()
}
