package main

import "github.com/Togather-Foundation/devconnector/cmd/server/cmd"

func main() {
	cmd.Execute()
}
