package main

import "github.com/pipeshell/pipeshell/cmd"

func main() {
	cmd.Execute()
}
