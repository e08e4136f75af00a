package main

import "github.com/radlocal/radlocal-deploy/cmd/radlocal-installer/cmd"

func main() {
	cmd.Execute()
}
