package main

import "github.com/terraconstructs/estate/cmd/estateapi/cmd"

func main() {
	cmd.Execute()
}
