package main

import "github.com/bryanchriswhite/CamLink/cmd/camlink/commands"

func main() {
	commands.Execute()
}
