package main

import "github.com/translatd/translatd/internal/cli"

func main() {
	cli.Execute()
}
