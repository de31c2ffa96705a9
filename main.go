package main

import (
	"example.com/backstage/services/repeater/cmd"
)

func main() {
	cmd.Execute()
}
