package main

import (
	"github.com/chainscope/logdecoder/cmd"
)

func main() {
	cmd.Execute()
}
