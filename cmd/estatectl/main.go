package main

import "github.com/terraconstructs/estate/cmd/estatectl/cmd"

func main() {
	cmd.Execute()
}
