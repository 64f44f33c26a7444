package main

import "github.com/vibast-solutions/ms-go-bunq-gateway/cmd"

func main() {
	cmd.Execute()
}
