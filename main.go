package main

import "github.com/rarb-labs/rarb/cmd"

func main() {
	cmd.Execute()
}
