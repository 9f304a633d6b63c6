package main

import "github.com/qrave1/FocusRoom/cmd"

func main() {
	cmd.Execute()
}
