package main

import (
	"github.com/atopx/mockphone/cmd/mockphone/cmd"
)

func main() {
	cmd.Execute()
}
