package main

import "github.com/kozaktomas/face-collapse/cmd"

func main() {
	cmd.Execute()
}
