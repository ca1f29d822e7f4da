package main

import "github.com/apkfleet/apkfleet-cli/cmd"

func main() {
	cmd.Execute()
}
