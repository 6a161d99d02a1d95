package main

import "github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/cli"

func main() {
	cli.Execute()
}
