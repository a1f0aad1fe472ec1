/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/tagtree/cmd/tagtree/cmd"
)

func main() {
	cmd.Execute()
}
