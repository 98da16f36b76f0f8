package main

import "github.com/zhaobenny/slurmusage/cli/cmd"

func main() {
	cmd.Execute()
}
