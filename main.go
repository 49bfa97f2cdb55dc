package main

import "sqlmerge/cmd"

func main() {
	cmd.Execute()
}
