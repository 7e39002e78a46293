package main

import "github.com/nextlevelbuilder/goclaw-secrets/cmd"

func main() {
	cmd.Execute()
}
