package main

import "github.com/mirrorhop/mirrorhop/cmd"

func main() {
	cmd.Execute()
}
