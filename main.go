package main

import "track-structure-analyzer/cmd"

func main() {
	cmd.Execute()
}
