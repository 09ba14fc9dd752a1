package main

import "github.com/mcoot/makeitmeme/internal/cli"

func main() {
	cli.Execute()
}
