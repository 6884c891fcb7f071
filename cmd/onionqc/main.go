package main

import "github.com/MeKo-Tech/onionqc/cmd/onionqc/cmd"

func main() {
	cmd.Execute()
}
