package main

import "github.com/debpack/debpack/cmd"

func main() {
	cmd.Execute()
}
