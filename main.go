package main

import "loankeeper/cmd"

func main() {
	cmd.Execute()
}
