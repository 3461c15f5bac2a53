package main

import "repo-scan/cmd"

func main() {
	cmd.Execute()
}
