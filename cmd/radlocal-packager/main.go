package main

import "github.com/radlocal/radlocal-deploy/cmd/radlocal-packager/cmd"

func main() {
	cmd.Execute()
}
