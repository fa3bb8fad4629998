package main

import "github.com/jmehdipour/subhub/cmd"

func main() {
	cmd.Execute()
}
