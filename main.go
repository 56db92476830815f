package main

import "github.com/shaharia-lab/signup-notifier/cmd"

func main() {
	cmd.Execute()
}
