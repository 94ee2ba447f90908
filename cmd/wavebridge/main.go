package main

import "wavebridge/internal/cli"

func main() {
	cli.Execute()
}
