package main

import "github.com/joshholl/integrations-core/internal/cli"

func main() {
	cli.Execute()
}
