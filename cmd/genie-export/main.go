package main

import (
	"github.com/oncall-tools/genie-export/internal/cli"
)

func main() {
	cli.Execute()
}
