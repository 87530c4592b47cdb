package main

import "streambench/cmd"

func main() {
	cmd.Execute()
}
