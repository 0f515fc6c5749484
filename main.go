package main

import "github.com/dt-pm-tools/board-sync/cmd"

func main() {
	cmd.Execute()
}
