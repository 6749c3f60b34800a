package main

import "github.com/mvp-joe/static-reflection/internal/cli"

func main() {
	cli.Execute()
}
