package main

import "github.com/mcoot/discordgate/internal/cli"

func main() {
	cli.Execute()
}
