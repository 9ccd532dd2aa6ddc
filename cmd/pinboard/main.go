package main

import "github.com/aweris/pinboard/cmd/pinboard/cmd"

func main() {
	cmd.Execute()
}
