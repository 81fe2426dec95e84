package main

import (
	"github.com/vectorhub/ragcache/cmd"
)

func main() {
	cmd.Execute()
}
