package main

import "github.com/kebairia/opsctl/cmd"

func main() {
	cmd.Execute()
}
