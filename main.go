package main

import (
	"github.com/daedaleanai/depbuild/cmd"
)

func main() {
	cmd.Execute()
}
