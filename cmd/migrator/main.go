package main

import "mohassil-migrator/cmd/migrator/cmd"

func main() {
	cmd.Execute()
}
