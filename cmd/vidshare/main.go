package main

import "github.com/vidshare/vidshare/internal/cli"

func main() {
	cli.Execute()
}
