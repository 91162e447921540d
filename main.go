package main

import "github.com/shouni/go-phish-features/cmd"

func main() {
	cmd.Execute()
}
